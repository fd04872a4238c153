// Package config is the typed TOML configuration tree (§6): the
// business/x_api/auth/scoring/limits/intervals/schedule/targets/llm/
// storage/logging/mcp_policy/approval_mode/deployment_mode sections,
// loaded and validated the way internal/config/loader.go decodes its
// YAML tree, but with github.com/pelletier/go-toml/v2 in place of
// gopkg.in/yaml.v3 per spec §6's TOML requirement.
package config

// Config is the top-level configuration record.
type Config struct {
	Business     Business     `toml:"business"`
	XAPI         XAPI         `toml:"x_api"`
	Auth         Auth         `toml:"auth"`
	Scoring      Scoring      `toml:"scoring"`
	Limits       Limits       `toml:"limits"`
	Intervals    Intervals    `toml:"intervals"`
	Schedule     Schedule     `toml:"schedule"`
	Targets      Targets      `toml:"targets"`
	LLM          LLM          `toml:"llm"`
	Storage      Storage      `toml:"storage"`
	Logging      Logging      `toml:"logging"`
	MCPPolicy    MCPPolicy    `toml:"mcp_policy"`
	ApprovalMode bool         `toml:"approval_mode"`
	DeploymentMode string     `toml:"deployment_mode"`
}

// Business describes the product the bot represents, per §6's
// "business" section.
type Business struct {
	ProductName        string   `toml:"product_name"`
	Description        string   `toml:"description"`
	TargetAudience     string   `toml:"target_audience"`
	ProductKeywords    []string `toml:"product_keywords"`
	CompetitorKeywords []string `toml:"competitor_keywords"`
	Topics             []string `toml:"topics"`
	Voice              string   `toml:"voice"`
}

// XAPI holds the X-API client credentials and backend selection.
type XAPI struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	// Provider is "x_api" or "scraper". The scraper backend is out of
	// scope (§9 Open Questions); its mutations always return
	// scraper_mutation_blocked.
	Provider string `toml:"provider"`
}

// Auth configures how the OAuth user-context token is obtained. The PKCE
// flow itself is a collaborator (§1 Non-goals); this only names which
// collaborator mode is active.
type Auth struct {
	// Mode is "local_callback" or "manual".
	Mode         string `toml:"mode"`
	CallbackHost string `toml:"callback_host"`
	CallbackPort int    `toml:"callback_port"`
}

// Scoring carries the discovery loop's threshold and six per-signal
// point caps, grounded on internal/loops.ScoringWeights.
type Scoring struct {
	Threshold      float64 `toml:"threshold"`
	KeywordMax     float64 `toml:"keyword_max"`
	FollowerMax    float64 `toml:"follower_max"`
	RecencyMax     float64 `toml:"recency_max"`
	EngagementMax  float64 `toml:"engagement_max"`
	ReplyCountMax  float64 `toml:"reply_count_max"`
	ContentTypeMax float64 `toml:"content_type_max"`
}

// Limits carries the safety/quota configuration (§4.4).
type Limits struct {
	MaxRepliesPerDay       int      `toml:"max_replies_per_day"`
	MaxTweetsPerDay        int      `toml:"max_tweets_per_day"`
	MaxThreadsPerWeek      int      `toml:"max_threads_per_week"`
	MinActionDelaySeconds  int      `toml:"min_action_delay_seconds"`
	MaxActionDelaySeconds  int      `toml:"max_action_delay_seconds"`
	BannedPhrases          []string `toml:"banned_phrases"`
	MaxProductMentionRatio float64  `toml:"max_product_mention_ratio"`
}

// Intervals carries each loop's tick/window duration, in seconds.
type Intervals struct {
	MentionsCheckSeconds     int `toml:"mentions_check_seconds"`
	DiscoverySearchSeconds   int `toml:"discovery_search_seconds"`
	ContentPostWindowSeconds int `toml:"content_post_window_seconds"`
	ThreadIntervalSeconds    int `toml:"thread_interval_seconds"`
}

// Schedule carries the active-hours window and preferred slot times
// (§4.1).
type Schedule struct {
	Timezone        string   `toml:"timezone"`
	ActiveStartHour int      `toml:"active_start_hour"`
	ActiveEndHour   int      `toml:"active_end_hour"`
	ActiveDays      []string `toml:"active_days"`
	PreferredTimes  []string `toml:"preferred_times"`
	ThreadDay       string   `toml:"thread_day"`
	ThreadTime      string   `toml:"thread_time"`
}

// Targets carries the monitored-account list for engagement loops.
type Targets struct {
	MonitoredAccounts []string `toml:"monitored_accounts"`
	PerDayReplyCap    int      `toml:"per_day_reply_cap"`
}

// LLM names the provider collaborator and its connection details; the
// provider's own internals are out of scope (§1 Non-goals).
type LLM struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

// Storage names the persistence collaborator's location and retention
// policy; the SQL schema itself is out of scope (§1 Non-goals).
type Storage struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

// Logging configures the periodic status-line interval; 0 disables it.
type Logging struct {
	StatusIntervalSeconds int `toml:"status_interval_seconds"`
}

// MCPPolicy is the policy evaluator's configuration surface (§4.3).
type MCPPolicy struct {
	EnforceForMutations bool     `toml:"enforce_for_mutations"`
	BlockedTools        []string `toml:"blocked_tools"`
	RequireApprovalFor  []string `toml:"require_approval_for"`
	DryRunMutations     bool     `toml:"dry_run_mutations"`
	MaxMutationsPerHour int      `toml:"max_mutations_per_hour"`
	// OperatingMode is "autopilot" or "composer".
	OperatingMode string `toml:"operating_mode"`
}

// Default returns a Config populated with the same conservative
// defaults a fresh install ships with: scoring weights summing to 100,
// a 1-reply-per-author-per-day throttle, and autopilot/non-dry-run
// operation.
func Default() Config {
	return Config{
		Scoring: Scoring{
			Threshold:      50,
			KeywordMax:     25,
			FollowerMax:    15,
			RecencyMax:     20,
			EngagementMax:  20,
			ReplyCountMax:  10,
			ContentTypeMax: 10,
		},
		Limits: Limits{
			MaxRepliesPerDay:       50,
			MaxTweetsPerDay:        10,
			MaxThreadsPerWeek:      3,
			MinActionDelaySeconds:  30,
			MaxActionDelaySeconds:  180,
			MaxProductMentionRatio: 0.2,
		},
		Intervals: Intervals{
			MentionsCheckSeconds:     300,
			DiscoverySearchSeconds:   900,
			ContentPostWindowSeconds: 14400,
			ThreadIntervalSeconds:    86400,
		},
		Schedule: Schedule{
			Timezone:        "UTC",
			ActiveStartHour: 8,
			ActiveEndHour:   22,
			ActiveDays:      []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
		},
		Targets: Targets{PerDayReplyCap: 1},
		MCPPolicy: MCPPolicy{
			EnforceForMutations: true,
			MaxMutationsPerHour: 30,
			OperatingMode:       "autopilot",
		},
		DeploymentMode: "self_host",
	}
}
