package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"jimaku/internal/chunkcache"
	"jimaku/internal/config"
	"jimaku/internal/logging"
	"jimaku/internal/timecode"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached chunk transcriptions",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var videoPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openCacheForCommand(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			video, err := videoFilter(videoPath)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context(), video)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No cached chunks in %s\n", cfg.CacheDatabasePath())
				return nil
			}

			headers := []string{"Video", "Chunk", "Span", "Model", "Lines", "Cached"}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Video,
					strconv.Itoa(e.ChunkIndex),
					timecode.FormatClock(e.Span.Start) + " - " + timecode.FormatClock(e.Span.End),
					e.Model,
					strconv.Itoa(len(e.Lines)),
					humanize.Time(e.CreatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, text.AlignLeft, text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignRight, text.AlignLeft))
			return nil
		},
	}
	cmd.Flags().StringVar(&videoPath, "video", "", "Only list chunks for this video file")
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show chunk cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openCacheForCommand(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", stats.Path)
			fmt.Fprintf(out, "Size:     %s\n", humanize.IBytes(uint64(max(stats.SizeBytes, 0))))
			fmt.Fprintf(out, "Entries:  %d across %d videos\n", stats.Entries, stats.Videos)
			fmt.Fprintf(out, "Lines:    %d\n", stats.Lines)
			if !stats.Oldest.IsZero() {
				fmt.Fprintf(out, "Oldest:   %s\n", humanize.Time(stats.Oldest))
				fmt.Fprintf(out, "Newest:   %s\n", humanize.Time(stats.Newest))
			}
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var videoPath string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached chunks (all, or one video's)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			video, err := videoFilter(videoPath)
			if err != nil {
				return err
			}
			lock, err := chunkcache.AcquireLock(cfg.Paths.CacheDir)
			if err != nil {
				if errors.Is(err, chunkcache.ErrLocked) {
					return fmt.Errorf("cache clear: a run is using the cache: %w", err)
				}
				return err
			}
			defer lock.Release()

			out := cmd.OutOrStdout()
			_, store, err := openCacheForCommand(ctx)
			if errors.Is(err, chunkcache.ErrSchemaMismatch) && video == "" {
				// Nothing in an incompatible database is reusable.
				if err := chunkcache.Remove(cfg.CacheDatabasePath()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed incompatible cache database %s\n", cfg.CacheDatabasePath())
				_, store, err = openCacheForCommand(ctx)
			}
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context(), video)
			if err != nil {
				return err
			}
			if video != "" {
				fmt.Fprintf(out, "Cleared %d cached chunks for %s\n", removed, video)
				return nil
			}
			fmt.Fprintf(out, "Cleared %d cached chunks\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&videoPath, "video", "", "Only list chunks for this video file")
	return cmd
}

func openCacheForCommand(ctx *commandContext) (*config.Config, *chunkcache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := ctx.openCache(cfg, logging.NewComponentLogger(logger, "cli-cache"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// videoFilter maps a --video path to the identity label stored with cached
// chunks.
func videoFilter(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	identity, err := chunkcache.IdentifyVideo(expanded)
	if err != nil {
		return "", err
	}
	return identity.String(), nil
}
