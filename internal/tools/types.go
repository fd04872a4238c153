// Package tools is the remote-callable tool surface (§4.7): a registry of
// named, policy-gated capabilities, each returning the uniform envelope
// (§6), described by a machine-readable manifest and profile filter.
//
// Grounded on internal/agent/tool_registry.go's ToolRegistry (thread-safe
// name->handler map, Execute-by-name dispatch) and
// internal/tools/policy/types.go's Profile type, generalized from nexus's
// agent-tool-access profiles to the four MCP server profiles
// original_source/crates/tuitbot-mcp/src/tools/manifest.rs declares.
package tools

import "context"

// Tool is the capability contract every registered tool implements.
// Mirrors internal/agent/provider_types.go's Tool interface shape
// (Name/Description/Schema) plus an Execute method that returns the
// envelope directly rather than a raw string, since every tool call here
// must produce the §4.7 envelope.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Entry() Entry
	Execute(ctx context.Context, params map[string]any) Envelope
}

// Category is the functional grouping used for manifest organization,
// grounded on manifest.rs's ToolCategory.
type Category string

const (
	CategoryRead       Category = "read"
	CategoryWrite      Category = "write"
	CategoryEngage     Category = "engage"
	CategoryMedia      Category = "media"
	CategoryAnalytics  Category = "analytics"
	CategoryApproval   Category = "approval"
	CategoryContent    Category = "content"
	CategoryDiscovery  Category = "discovery"
	CategoryScoring    Category = "scoring"
	CategoryConfig     Category = "config"
	CategoryHealth     Category = "health"
	CategoryPolicy     Category = "policy"
	CategoryTelemetry  Category = "telemetry"
	CategoryContext    Category = "context"
	CategoryComposite  Category = "composite"
	CategoryMeta       Category = "meta"
)

// Lane distinguishes tools shared across every profile from tools that
// only make sense inside the automation workflow, grounded on
// manifest.rs's Lane.
type Lane string

const (
	LaneShared   Lane = "shared"
	LaneWorkflow Lane = "workflow"
)

// Profile is a named bundle of tools exposed by the server, grounded on
// manifest.rs's Profile (Readonly/ApiReadonly/Write/Admin) rather than
// internal/tools/policy's agent-facing profile vocabulary.
type Profile string

const (
	ProfileReadonly    Profile = "readonly"
	ProfileAPIReadonly Profile = "api_readonly"
	ProfileWrite       Profile = "write"
	ProfileAdmin       Profile = "admin"
)

// ErrorCode is the closed vocabulary spec §4.7 names. A tool may only ever
// return a code from this list. A manifest Entry.PossibleErrorCodes list
// draws from the same vocabulary but may name codes its tool never
// returns (approve_item lists x_not_configured and x_api_error).
type ErrorCode string

const (
	ErrXRateLimited           ErrorCode = "x_rate_limited"
	ErrXAuthExpired           ErrorCode = "x_auth_expired"
	ErrXForbidden             ErrorCode = "x_forbidden"
	ErrXAPIError              ErrorCode = "x_api_error"
	ErrXNotConfigured         ErrorCode = "x_not_configured"
	ErrTweetTooLong           ErrorCode = "tweet_too_long"
	ErrInvalidInput           ErrorCode = "invalid_input"
	ErrLLMNotConfigured       ErrorCode = "llm_not_configured"
	ErrLLMError               ErrorCode = "llm_error"
	ErrDBError                ErrorCode = "db_error"
	ErrPolicyDeniedBlocked    ErrorCode = "policy_denied_blocked"
	ErrPolicyDeniedRateLimit  ErrorCode = "policy_denied_rate_limited"
	ErrPolicyDeniedHardRule   ErrorCode = "policy_denied_hard_rule"
	ErrPolicyDeniedUserRule   ErrorCode = "policy_denied_user_rule"
	ErrPolicyError            ErrorCode = "policy_error"
	ErrValidationError        ErrorCode = "validation_error"
	ErrNotFound               ErrorCode = "not_found"
	ErrUnsupportedMediaType   ErrorCode = "unsupported_media_type"
	ErrFileReadError          ErrorCode = "file_read_error"
	ErrMediaUploadError       ErrorCode = "media_upload_error"
	ErrThreadPartialFailure   ErrorCode = "thread_partial_failure"
	ErrXRequestBlocked        ErrorCode = "x_request_blocked"
	ErrScraperMutationBlocked ErrorCode = "scraper_mutation_blocked"
	ErrContextError           ErrorCode = "context_error"
	ErrRecommendationError    ErrorCode = "recommendation_error"
	ErrTopicError             ErrorCode = "topic_error"
)

// AllErrorCodes is the full closed vocabulary, used by the manifest test
// to guard against a tool referencing a code outside it.
var AllErrorCodes = map[ErrorCode]bool{
	ErrXRateLimited: true, ErrXAuthExpired: true, ErrXForbidden: true,
	ErrXAPIError: true, ErrXNotConfigured: true, ErrTweetTooLong: true,
	ErrInvalidInput: true, ErrLLMNotConfigured: true, ErrLLMError: true,
	ErrDBError: true, ErrPolicyDeniedBlocked: true, ErrPolicyDeniedRateLimit: true,
	ErrPolicyDeniedHardRule: true, ErrPolicyDeniedUserRule: true, ErrPolicyError: true,
	ErrValidationError: true, ErrNotFound: true, ErrUnsupportedMediaType: true,
	ErrFileReadError: true, ErrMediaUploadError: true, ErrThreadPartialFailure: true,
	ErrXRequestBlocked: true, ErrScraperMutationBlocked: true, ErrContextError: true,
	ErrRecommendationError: true, ErrTopicError: true,
}

// Entry is one row of the declarative manifest table, grounded on
// manifest.rs's ToolEntry.
type Entry struct {
	Name                   string
	Category               Category
	Lane                   Lane
	Mutation               bool
	RequiresXClient        bool
	RequiresLLM            bool
	RequiresDB             bool
	RequiresScopes         []string
	RequiresUserAuth       bool
	RequiresElevatedAccess bool
	Profiles               []Profile
	PossibleErrorCodes     []ErrorCode
}

// InProfile reports whether the entry is exposed under the given profile.
func (e Entry) InProfile(p Profile) bool {
	for _, candidate := range e.Profiles {
		if candidate == p {
			return true
		}
	}
	return false
}
