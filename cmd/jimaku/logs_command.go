package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"jimaku/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the jimaku log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			out := cmd.OutOrStdout()

			result, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: -1, Limit: lines, Match: filter.Match})
			if err != nil {
				return err
			}
			printLogLines(out, result.Lines, raw)
			if !follow {
				if len(result.Lines) == 0 {
					fmt.Fprintf(out, "No matching log entries in %s\n", path)
				}
				return nil
			}

			offset := result.Offset
			for {
				next, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: offset, Follow: true, Wait: 5 * time.Second, Match: filter.Match})
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return nil
					}
					return err
				}
				printLogLines(out, next.Lines, raw)
				offset = next.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the JSON lines unchanged")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only show entries for this run ID (prefix match)")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}

func printLogLines(out io.Writer, lines []string, raw bool) {
	for _, line := range lines {
		if !raw {
			if rec, ok := logs.ParseRecord(line); ok {
				line = rec.Format()
			}
		}
		fmt.Fprintln(out, line)
	}
}
