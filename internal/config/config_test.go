package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, toml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tuitbot.toml")
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedSections(t *testing.T) {
	path := writeConfig(t, `
[business]
product_name = "Acme"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scoring.Threshold != 50 {
		t.Fatalf("expected default threshold 50, got %v", cfg.Scoring.Threshold)
	}
	if cfg.Business.ProductName != "Acme" {
		t.Fatalf("expected product_name Acme, got %q", cfg.Business.ProductName)
	}
}

func TestLoadRejectsOutOfRangeThreshold(t *testing.T) {
	path := writeConfig(t, `
[scoring]
threshold = 150
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for threshold out of range")
	} else if !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestLoadRejectsOutOfRangeMentionRatio(t *testing.T) {
	path := writeConfig(t, `
[limits]
max_product_mention_ratio = 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for mention ratio out of range")
	}
}

func TestLoadRejectsUnresolvableTimezone(t *testing.T) {
	path := writeConfig(t, `
[schedule]
timezone = "Not/A_Zone"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unresolvable timezone")
	}
}

func TestLoadRejectsUnknownDeploymentMode(t *testing.T) {
	path := writeConfig(t, `
deployment_mode = "spaceship"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown deployment_mode")
	}
}

func TestRenderParseRoundTripIsIdentity(t *testing.T) {
	cfg := Default()
	cfg.Business.ProductName = "Acme"
	cfg.Business.Topics = []string{"go", "rust"}

	first, err := Render(cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	parsed, err := Parse(first)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, err := Render(*parsed)
	if err != nil {
		t.Fatalf("render again: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("render->parse->render is not the identity:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestValidateOrdersActionDelays(t *testing.T) {
	cfg := Default()
	cfg.Limits.MinActionDelaySeconds = 200
	cfg.Limits.MaxActionDelaySeconds = 100
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for inverted action delay bounds")
	}
}
