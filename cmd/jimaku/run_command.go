package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"jimaku/internal/pipeline"
	"jimaku/internal/preflight"
	"jimaku/internal/services"
	"jimaku/internal/timecode"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts pipeline.Options
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Transcribe a video's Japanese audio into an SRT file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("provide the path to the video. Example: jimaku run /path/to/episode.mkv")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := cfg.RequireGeminiKey(); err != nil {
				return err
			}
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				return preflightError(failed)
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			store, err := ctx.openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			runnerOpts := []pipeline.RunnerOption{pipeline.WithLogger(logger)}
			if !quiet {
				runnerOpts = append(runnerOpts, pipeline.WithProgress(func(report pipeline.ChunkReport) {
					fmt.Fprintf(out, "chunk %d [%s] %s\n", report.Index, report.Span, report.Status)
				}))
			}
			runner := pipeline.NewRunner(cfg, mediaTool(cfg), geminiClient(cfg, logger), store, runnerOpts...)

			result, runErr := runner.Run(cmd.Context(), strings.TrimSpace(args[0]), opts)
			if len(result.Chunks) > 0 {
				fmt.Fprintln(out, renderRunReport(result))
			}
			printRunSummary(out, result)
			return runErr
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "Series background as text or a file path")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Gemini model override")
	cmd.Flags().IntVar(&opts.ChunkSizeSeconds, "chunk-size", 0, "Target chunk length in seconds (default from config)")
	cmd.Flags().IntVar(&opts.MaxChunks, "limit", 0, "Process at most this many chunks (0 = all)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "Output SRT path (default <video>.ja.srt)")
	cmd.Flags().BoolVar(&opts.KeepTemp, "keep-temp", false, "Keep the extracted audio and chunk clips")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-chunk progress lines")
	return cmd
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "cli", "preflight", strings.Join(parts, "; "), nil)
}

func renderRunReport(result pipeline.Result) string {
	headers := []string{"Chunk", "Span", "Cut", "Status", "Attempts", "Lines", "Reason"}
	rows := make([][]string, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			timecode.FormatClock(c.Span.Start) + " - " + timecode.FormatClock(c.Span.End),
			c.Cut,
			string(c.Status),
			strconv.Itoa(c.Attempts),
			strconv.Itoa(c.Lines),
			c.Reason,
		})
	}
	return renderTable(headers, rows, text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignRight, text.AlignRight, text.AlignLeft)
}

func printRunSummary(out io.Writer, result pipeline.Result) {
	if result.ContextTrack.Codec != "" {
		fmt.Fprintf(out, "Context track: %s\n", result.ContextTrack.Label())
		fmt.Fprintf(out, "Audio track:   %s\n", result.AudioTrack.Label())
	}
	if len(result.Chunks) > 0 {
		fmt.Fprintf(out, "Chunks: %d (cached %d, accepted %d, skipped %d, failed %d, pending %d)\n",
			len(result.Chunks),
			result.Count(pipeline.StatusCacheHit),
			result.Count(pipeline.StatusAccepted),
			result.Count(pipeline.StatusSkipped),
			result.Count(pipeline.StatusFailed)+result.Count(pipeline.StatusFatal),
			result.Count(pipeline.StatusPending),
		)
	}
	if result.Written {
		fmt.Fprintf(out, "Wrote %d lines to %s\n", result.Lines, result.OutputPath)
	} else {
		fmt.Fprintln(out, "No subtitle file written")
	}
	if result.WorkDir != "" {
		fmt.Fprintf(out, "Work directory kept at %s\n", result.WorkDir)
	}
	if result.Written && !result.Complete() {
		fmt.Fprintln(out, "Some chunks are missing from the output; rerun the same command to retry them")
	}
}
