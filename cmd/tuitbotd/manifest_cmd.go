package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuitbot/tuitbot-core/internal/tools"
)

// buildManifestCmd prints the tool manifest for a given profile, letting an
// operator or an MCP client inspect the surface without starting the
// daemon, grounded on manifest.rs being callable standalone from the
// original source's CLI.
func buildManifestCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the tool manifest for a profile",
		Long:  "Print the JSON tool manifest (readonly, api_readonly, write, or admin profile; omit for the full unfiltered manifest).",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			if profile == "" {
				out = tools.GenerateManifest()
			} else {
				out = tools.GenerateProfileManifest(tools.Profile(profile))
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal manifest: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile to filter by: readonly, api_readonly, write, admin")
	return cmd
}
