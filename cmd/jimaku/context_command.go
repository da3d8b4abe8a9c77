package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jimaku/internal/config"
	"jimaku/internal/fileutil"
	"jimaku/internal/seriesctx"
)

func newContextCommand(ctx *commandContext) *cobra.Command {
	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Series context utilities",
	}
	contextCmd.AddCommand(newContextGenerateCommand(ctx))
	return contextCmd
}

func newContextGenerateCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var wikiURL string

	cmd := &cobra.Command{
		Use:   "generate <title>",
		Short: "Summarize a Japanese Wikipedia article into a context file for --context",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || strings.TrimSpace(strings.Join(args, " ")) == "" {
				return errors.New("provide the series title as it appears on Japanese Wikipedia. Example: jimaku context generate ぼっち・ざ・ろっく!")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireGeminiKey(); err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}

			title := strings.TrimSpace(strings.Join(args, " "))
			generator := seriesctx.NewGenerator(seriesctx.NewWikiClient(wikiURL), geminiClient(cfg, logger), logger)
			summary, err := generator.Generate(cmd.Context(), title)
			if err != nil {
				var ambiguous *seriesctx.AmbiguousError
				if errors.As(err, &ambiguous) {
					return fmt.Errorf("%w; rerun with the exact article title", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if strings.TrimSpace(outputPath) == "" {
				fmt.Fprintln(out, summary)
				return nil
			}
			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(target, []byte(summary+"\n"), 0o644); err != nil {
				return fmt.Errorf("write context file: %w", err)
			}
			fmt.Fprintf(out, "Wrote series context to %s\n", target)
			fmt.Fprintf(out, "Use it with: jimaku run --context %s <video>\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the summary to this file instead of stdout")
	cmd.Flags().StringVar(&wikiURL, "wiki-url", seriesctx.DefaultWikiURL, "MediaWiki API endpoint")
	return cmd
}
