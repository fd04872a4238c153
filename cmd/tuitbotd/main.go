// Command tuitbotd is the tuitbot-core process entrypoint: it loads the
// TOML configuration, wires the safety/policy/xapi/loops stack, registers
// the remote tool surface, and runs the four automation loops under a
// supervisor until it receives a shutdown signal.
//
// Grounded on cmd/nexus/main.go's cobra command-tree shape (buildRootCmd /
// buildServeCmd / runServe), trimmed from Nexus's channel-gateway command
// surface (serve, migrate, profile, skills, memory, mcp, service) down to
// the two commands this daemon actually needs: serve and manifest.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version/commit/date are stamped at build time via -ldflags, the same
// build-info plumbing cmd/nexus/main.go uses.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tuitbotd",
		Short:   "tuitbot-core automation daemon",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildManifestCmd())

	return rootCmd
}

// defaultConfigPath is the TOML file tuitbotd reads when --config is not
// given, mirroring content_loop.rs's deployment convention of a single
// config file next to the binary.
const defaultConfigPath = "tuitbot.toml"

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("TUITBOT_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}
