package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jimaku/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories and the Gemini API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := &statusReport{colorize: shouldColorize(out)}

			report.section("Configuration")
			path := ctx.configPath
			if path == "" {
				path = "(defaults)"
			}
			report.add("Config file", statusInfo, path)
			report.add("Model", statusInfo, cfg.Gemini.Model)

			report.section("System")
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				report.check(preflight.FromDependency(status), statusError)
			}
			report.check(preflight.CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir), statusError)
			report.check(preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir), statusError)
			report.check(preflight.CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, preflight.MinFreeWorkBytes), statusWarn)

			report.section("Backend")
			switch {
			case strings.TrimSpace(cfg.Gemini.APIKey) == "":
				report.add("Gemini API", statusError, "API key missing (set GEMINI_API_KEY)")
			case offline:
				report.add("Gemini API", statusInfo, "API key set (not checked)")
			default:
				report.check(preflight.CheckGemini(cmd.Context(), cfg.Gemini), statusError)
			}

			fmt.Fprintln(out, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Gemini API reachability check")
	return cmd
}
