package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"jimaku/internal/language"
	"jimaku/internal/logging"
	"jimaku/internal/media/tracks"
	"jimaku/internal/segment"
	"jimaku/internal/services"
	"jimaku/internal/subtitles"
)

type extracted struct {
	events    []subtitles.Event
	audioPath string
	duration  time.Duration
}

// subtitleExtension picks the demux target for a text subtitle codec.
func subtitleExtension(codec string) string {
	switch codec {
	case "ass", "ssa":
		return ".ass"
	default:
		return ".srt"
	}
}

func (s *run) extract(ctx context.Context) (extracted, error) {
	logger := logging.WithContext(ctx, s.logger)

	probe, err := s.media.Probe(ctx, s.video)
	if err != nil {
		return extracted{}, err
	}
	s.result.Duration = probe.Duration()

	contextTrack, err := tracks.SelectContextTrack(probe.Streams)
	if err != nil {
		return extracted{}, err
	}
	audioTrack, err := tracks.SelectAudioTrack(probe.Streams)
	if err != nil {
		return extracted{}, err
	}
	s.result.ContextTrack = contextTrack
	s.result.AudioTrack = audioTrack
	logger.Info("tracks selected",
		logging.String("context_track", contextTrack.Label()),
		logging.String("audio_track", audioTrack.Label()),
		logging.String(logging.FieldDecisionType, "track_selection"),
	)
	if !language.Matches(audioTrack.Language, "ja") {
		logging.WarnWithContext(logger, "no japanese audio track found", "audio_language_mismatch",
			logging.String("audio_track", audioTrack.Label()),
			logging.String(logging.FieldImpact, "transcription quality depends on the selected track being Japanese"),
			logging.String(logging.FieldErrorHint, "check the audio track languages with jimaku tracks"),
		)
	}

	subtitlePath := filepath.Join(s.workDir, "context"+subtitleExtension(contextTrack.Codec))
	if err := s.media.ExtractSubtitle(ctx, s.video, contextTrack.Index, subtitlePath); err != nil {
		return extracted{}, err
	}
	events, stats, err := subtitles.LoadContext(subtitlePath)
	if err != nil {
		return extracted{}, services.Wrap(services.ErrExtraction, "pipeline", "load context track", contextTrack.Label(), err)
	}
	logger.Debug("context track filtered",
		logging.Int("total", stats.Total),
		logging.Int("kept", stats.Kept),
		logging.Int("style", stats.Style),
		logging.Int("typesetting", stats.Typesetting),
		logging.Int("drawing", stats.Drawing),
		logging.Int("empty", stats.Empty),
		logging.Int("non_english", stats.NonEnglish),
	)
	if len(events) == 0 {
		return extracted{}, services.Wrap(services.ErrNoSuitableTrack, "pipeline", "load context track",
			fmt.Sprintf("%s has no English dialogue after filtering", contextTrack.Label()), nil)
	}

	audioPath := filepath.Join(s.workDir, "audio"+s.format.Extension)
	if err := s.media.ExtractAudio(ctx, s.video, audioTrack.Index, s.format, audioPath); err != nil {
		return extracted{}, err
	}
	return extracted{events: events, audioPath: audioPath, duration: probe.Duration()}, nil
}

func (s *run) plan(media extracted) ([]segment.Chunk, error) {
	opts := segmentOptions(s.cfg.Segmenter, s.opts.ChunkSizeSeconds)
	chunks, err := segment.Plan(media.events, media.duration, opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan chunks", "", err)
	}
	if s.result.Duration <= 0 && len(chunks) > 0 {
		s.result.Duration = chunks[len(chunks)-1].Span.End
	}
	s.result.Chunks = make([]ChunkReport, len(chunks))
	silent := 0
	for i, c := range chunks {
		s.result.Chunks[i] = ChunkReport{Index: c.Index, Span: c.Span, Cut: c.Cut, Status: StatusPending}
		if c.Silent() {
			silent++
		}
	}
	s.logger.Info("chunks planned",
		logging.Int("chunks", len(chunks)),
		logging.Int("silent", silent),
		logging.Duration("target", opts.Target),
		logging.Int("limit", s.opts.MaxChunks),
	)
	return chunks, nil
}
