package tools

import "sort"

// Version triplet stamped into every manifest artifact (§6 "Manifest
// artifact"). Grounded on manifest.rs's ProfileManifest
// (tuitbot_mcp_version/mcp_schema_version/x_api_spec_version); any change
// to these three is a breaking change to the surface per §4.7.
const (
	CoreVersion     = "0.1.0"
	SchemaVersion   = "1.0"
	XAPISpecVersion = "2.0"
)

// Manifest is the full, unfiltered tool catalog.
type Manifest struct {
	TuitbotVersion  string  `json:"tuitbot_version"`
	SchemaVersion   string  `json:"mcp_schema_version"`
	XAPISpecVersion string  `json:"x_api_spec_version"`
	Tools           []Entry `json:"tools"`
}

// ProfileManifest is the filtered, profile-scoped artifact external
// callers actually fetch (§6's top-level keys: tuitbot_mcp_version,
// mcp_schema_version, x_api_spec_version, profile, tool_count, tools).
type ProfileManifest struct {
	TuitbotMCPVersion string  `json:"tuitbot_mcp_version"`
	MCPSchemaVersion  string  `json:"mcp_schema_version"`
	XAPISpecVersion   string  `json:"x_api_spec_version"`
	Profile           Profile `json:"profile"`
	ToolCount         int     `json:"tool_count"`
	Tools             []Entry `json:"tools"`
}

var (
	allFour     = []Profile{ProfileReadonly, ProfileAPIReadonly, ProfileWrite, ProfileAdmin}
	writeUpAPI  = []Profile{ProfileAPIReadonly, ProfileWrite, ProfileAdmin}
	writeUp     = []Profile{ProfileWrite, ProfileAdmin}
	adminOnly   = []Profile{ProfileAdmin}
	apiReadOnly = []Profile{ProfileAPIReadonly}
)

var xReadErr = []ErrorCode{ErrXNotConfigured, ErrXRateLimited, ErrXAuthExpired, ErrXForbidden, ErrXAPIError}

var xWriteErr = []ErrorCode{
	ErrXNotConfigured, ErrXRateLimited, ErrXAuthExpired, ErrXForbidden, ErrXAPIError,
	ErrTweetTooLong, ErrScraperMutationBlocked, ErrPolicyDeniedBlocked,
	ErrPolicyDeniedRateLimit, ErrPolicyDeniedHardRule, ErrPolicyDeniedUserRule, ErrPolicyError,
	ErrValidationError,
}

var xEngageErr = []ErrorCode{
	ErrXNotConfigured, ErrXRateLimited, ErrXAuthExpired, ErrXForbidden, ErrXAPIError,
	ErrScraperMutationBlocked, ErrPolicyDeniedBlocked, ErrPolicyDeniedRateLimit,
	ErrPolicyDeniedHardRule, ErrPolicyDeniedUserRule, ErrPolicyError, ErrValidationError,
}

var xRequestErr = []ErrorCode{ErrXNotConfigured, ErrXRateLimited, ErrXAuthExpired, ErrXForbidden, ErrXAPIError, ErrXRequestBlocked}

var dbErr = []ErrorCode{ErrDBError}
var llmErr = []ErrorCode{ErrLLMNotConfigured, ErrLLMError}

// curatedEntries is the declarative source-of-truth table, grounded on
// manifest.rs's all_curated_tools(). It doesn't carry every tool the
// original source names (the spec-pack-generated Layer 2 tools have no
// equivalent here), but represents every category, lane, and profile
// combination spec §4.7 describes, and every entry here corresponds to an
// actual registered Tool implementation in this package.
func curatedEntries() []Entry {
	return []Entry{
		{
			Name: "x_post_tweet", Category: CategoryWrite, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "tweet.write", "users.read"},
			Profiles: writeUp, PossibleErrorCodes: xWriteErr,
		},
		{
			Name: "x_reply_to_tweet", Category: CategoryWrite, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "tweet.write", "users.read"},
			Profiles: writeUp, PossibleErrorCodes: xWriteErr,
		},
		{
			Name: "x_post_thread", Category: CategoryWrite, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "tweet.write", "users.read"},
			Profiles: writeUp,
			PossibleErrorCodes: append(append([]ErrorCode{}, xWriteErr...),
				ErrInvalidInput, ErrThreadPartialFailure),
		},
		{
			Name: "x_delete_tweet", Category: CategoryWrite, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "tweet.write", "users.read"},
			Profiles: writeUp, PossibleErrorCodes: xWriteErr,
		},
		{
			Name: "x_like_tweet", Category: CategoryEngage, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"like.read", "like.write", "users.read"},
			Profiles: writeUp, PossibleErrorCodes: xEngageErr,
		},
		{
			Name: "x_follow_user", Category: CategoryEngage, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true, RequiresUserAuth: true,
			RequiresScopes: []string{"follows.read", "follows.write", "users.read"},
			Profiles: writeUp, PossibleErrorCodes: xEngageErr,
		},
		{
			Name: "x_search_tweets", Category: CategoryRead, Lane: LaneShared,
			RequiresXClient: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "users.read"},
			Profiles: allFour, PossibleErrorCodes: xReadErr,
		},
		{
			Name: "get_tweet_by_id", Category: CategoryRead, Lane: LaneShared,
			RequiresXClient: true, RequiresUserAuth: true,
			RequiresScopes: []string{"tweet.read", "users.read"},
			Profiles: allFour, PossibleErrorCodes: xReadErr,
		},
		{
			Name: "x_get", Category: CategoryRead, Lane: LaneWorkflow,
			RequiresXClient: true, RequiresUserAuth: true, RequiresElevatedAccess: true,
			Profiles: adminOnly, PossibleErrorCodes: xRequestErr,
		},
		{
			Name: "x_post", Category: CategoryWrite, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresUserAuth: true, RequiresElevatedAccess: true,
			Profiles: adminOnly, PossibleErrorCodes: xRequestErr,
		},
		{
			Name: "x_get_me", Category: CategoryRead, Lane: LaneShared,
			RequiresXClient: true, RequiresUserAuth: true,
			RequiresScopes: []string{"users.read"},
			Profiles: apiReadOnly, PossibleErrorCodes: xReadErr,
		},
		{
			Name: "generate_tweet", Category: CategoryContent, Lane: LaneWorkflow,
			RequiresLLM: true, RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: llmErr,
		},
		{
			Name: "generate_reply", Category: CategoryContent, Lane: LaneWorkflow,
			RequiresLLM: true, RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: llmErr,
		},
		{
			Name: "generate_thread", Category: CategoryContent, Lane: LaneWorkflow,
			RequiresLLM: true, RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: llmErr,
		},
		{
			Name: "approve_item", Category: CategoryApproval, Lane: LaneWorkflow, Mutation: true,
			RequiresXClient: true, RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: []ErrorCode{ErrDBError, ErrNotFound, ErrXNotConfigured, ErrXAPIError},
		},
		{
			Name: "reject_item", Category: CategoryApproval, Lane: LaneWorkflow, Mutation: true,
			RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: []ErrorCode{ErrDBError, ErrNotFound},
		},
		{
			Name: "list_pending_approvals", Category: CategoryApproval, Lane: LaneWorkflow,
			RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: dbErr,
		},
		{
			Name: "get_config", Category: CategoryConfig, Lane: LaneShared,
			Profiles: allFour, PossibleErrorCodes: []ErrorCode{},
		},
		{
			Name: "get_mode", Category: CategoryMeta, Lane: LaneShared,
			Profiles: writeUpAPI, PossibleErrorCodes: []ErrorCode{},
		},
		{
			Name: "health_check", Category: CategoryHealth, Lane: LaneShared,
			Profiles: allFour, PossibleErrorCodes: []ErrorCode{},
		},
		{
			Name: "get_policy_status", Category: CategoryPolicy, Lane: LaneWorkflow,
			RequiresDB: true,
			Profiles: writeUp, PossibleErrorCodes: dbErr,
		},
		{
			Name: "propose_and_queue_replies", Category: CategoryComposite, Lane: LaneWorkflow, Mutation: true,
			RequiresLLM: true, RequiresDB: true,
			Profiles: writeUp,
			PossibleErrorCodes: []ErrorCode{
				ErrInvalidInput, ErrLLMError, ErrDBError, ErrValidationError,
				ErrPolicyDeniedBlocked, ErrPolicyDeniedRateLimit, ErrPolicyDeniedHardRule,
				ErrPolicyDeniedUserRule, ErrPolicyError,
			},
		},
	}
}

// entryByName looks up a single curated entry, returning the zero Entry if
// name has no manifest row. Used by Tool.Entry() implementations so the
// manifest table stays the single source of truth for tool metadata.
func entryByName(name string) Entry {
	for _, e := range curatedEntries() {
		if e.Name == name {
			return e
		}
	}
	return Entry{}
}

// GenerateManifest builds the full, unfiltered manifest, sorted
// alphabetically by tool name for determinism, the same way
// manifest.rs's generate_manifest/all_tools does.
func GenerateManifest() Manifest {
	entries := curatedEntries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return Manifest{
		TuitbotVersion:  CoreVersion,
		SchemaVersion:   SchemaVersion,
		XAPISpecVersion: XAPISpecVersion,
		Tools:           entries,
	}
}

// GenerateProfileManifest filters the full manifest down to the tools
// visible under profile, grounded on manifest.rs's
// generate_profile_manifest.
func GenerateProfileManifest(profile Profile) ProfileManifest {
	full := GenerateManifest()
	filtered := make([]Entry, 0, len(full.Tools))
	for _, e := range full.Tools {
		if e.InProfile(profile) {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	return ProfileManifest{
		TuitbotMCPVersion: full.TuitbotVersion,
		MCPSchemaVersion:  full.SchemaVersion,
		XAPISpecVersion:   full.XAPISpecVersion,
		Profile:           profile,
		ToolCount:         len(filtered),
		Tools:             filtered,
	}
}
