package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the TOML file at path into a Config, starting
// from Default() so unset sections keep their conservative defaults,
// then validates the result. Grounded on internal/config/loader.go's
// decodeRawConfig shape, simplified: spec §6 names no $include/multi-file
// merging, so this is a single-file decode rather than loader.go's
// recursive include resolution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Render serializes cfg back to TOML. Testable property (spec.md §8):
// Render(parse(Render(cfg))) must byte-equal Render(cfg).
func Render(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: render: %w", err)
	}
	return out, nil
}

// Parse decodes raw TOML bytes into a Config without touching the
// filesystem, starting from Default() and validating the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants spec §6's collaborator contract names:
// scoring threshold in [0, 100], product-mention ratio in [0, 1], action
// delays ordered, timezone resolvable, operating mode and deployment
// mode in their closed vocabularies.
func (c Config) Validate() error {
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 100 {
		return fmt.Errorf("scoring.threshold must be in [0, 100], got %v", c.Scoring.Threshold)
	}
	if c.Limits.MaxProductMentionRatio < 0 || c.Limits.MaxProductMentionRatio > 1 {
		return fmt.Errorf("limits.max_product_mention_ratio must be in [0, 1], got %v", c.Limits.MaxProductMentionRatio)
	}
	if c.Limits.MinActionDelaySeconds > c.Limits.MaxActionDelaySeconds {
		return fmt.Errorf("limits.min_action_delay_seconds (%d) must be <= max_action_delay_seconds (%d)",
			c.Limits.MinActionDelaySeconds, c.Limits.MaxActionDelaySeconds)
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone %q is not resolvable: %w", c.Schedule.Timezone, err)
		}
	}
	if c.Schedule.ActiveStartHour < 0 || c.Schedule.ActiveStartHour > 23 {
		return fmt.Errorf("schedule.active_start_hour must be in [0, 23], got %d", c.Schedule.ActiveStartHour)
	}
	if c.Schedule.ActiveEndHour < 0 || c.Schedule.ActiveEndHour > 23 {
		return fmt.Errorf("schedule.active_end_hour must be in [0, 23], got %d", c.Schedule.ActiveEndHour)
	}
	switch c.XAPI.Provider {
	case "", "x_api", "scraper":
	default:
		return fmt.Errorf("x_api.provider must be x_api or scraper, got %q", c.XAPI.Provider)
	}
	switch c.Auth.Mode {
	case "", "local_callback", "manual":
	default:
		return fmt.Errorf("auth.mode must be local_callback or manual, got %q", c.Auth.Mode)
	}
	switch c.LLM.Provider {
	case "", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider must be openai, anthropic, or ollama, got %q", c.LLM.Provider)
	}
	switch c.MCPPolicy.OperatingMode {
	case "", "autopilot", "composer":
	default:
		return fmt.Errorf("mcp_policy.operating_mode must be autopilot or composer, got %q", c.MCPPolicy.OperatingMode)
	}
	switch c.DeploymentMode {
	case "", "desktop", "self_host", "cloud":
	default:
		return fmt.Errorf("deployment_mode must be desktop, self_host, or cloud, got %q", c.DeploymentMode)
	}
	return nil
}
