package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"jimaku/internal/language"
	"jimaku/internal/media/tracks"
	"jimaku/internal/timecode"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks <video>",
		Short: "List subtitle and audio tracks with their selection scores",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("provide the path to the video. Example: jimaku tracks /path/to/episode.mkv")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			video, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			probe, err := mediaTool(cfg).Probe(cmd.Context(), video)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", filepath.Base(video), timecode.FormatSRT(probe.Duration()))

			subs := tracks.RankSubtitles(probe.Streams)
			fmt.Fprintln(out, "Subtitle tracks:")
			if len(subs) == 0 {
				fmt.Fprintln(out, "  none")
			} else {
				fmt.Fprintln(out, renderTrackTable(subs, true))
			}

			audio := tracks.RankAudio(probe.Streams)
			fmt.Fprintln(out, "Audio tracks:")
			if len(audio) == 0 {
				fmt.Fprintln(out, "  none")
			} else {
				fmt.Fprintln(out, renderTrackTable(audio, false))
			}

			if best, err := tracks.SelectContextTrack(probe.Streams); err == nil {
				fmt.Fprintf(out, "Context track: %s\n", best.Label())
			} else {
				fmt.Fprintf(out, "Context track: none (%v)\n", err)
			}
			if best, err := tracks.SelectAudioTrack(probe.Streams); err == nil {
				fmt.Fprintf(out, "Audio track:   %s\n", best.Label())
			}
			return nil
		},
	}
}

func renderTrackTable(ranked []tracks.Track, subtitles bool) string {
	headers := []string{"Stream", "Language", "Codec", "Title", "Score"}
	aligns := []text.Align{text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignRight}
	if subtitles {
		headers = append(headers, "Events", "Text")
		aligns = append(aligns, text.AlignRight, text.AlignLeft)
	}
	rows := make([][]string, 0, len(ranked))
	for _, t := range ranked {
		lang := "-"
		if t.Language != "" {
			lang = fmt.Sprintf("%s (%s)", language.DisplayName(t.Language), t.Language)
		}
		row := []string{
			strconv.Itoa(t.Index),
			lang,
			t.Codec,
			t.Title,
			strconv.FormatFloat(t.Score, 'f', 1, 64),
		}
		if subtitles {
			row = append(row, strconv.Itoa(t.Frames), yesNo(t.Usable))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns...)
}
