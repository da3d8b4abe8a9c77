package pipeline

import (
	"cmp"
	"io"
	"slices"

	"jimaku/internal/fileutil"
	"jimaku/internal/logging"
	"jimaku/internal/segment"
	"jimaku/internal/services"
	"jimaku/internal/subtitles"
	"jimaku/internal/textutil"
)

// Assemble re-bases each resolved chunk's lines by its start, clamps them to
// the chunk, and returns them in video order. Lines are never merged: an
// overlapping line only has its end pulled back to the next line's start,
// unless that would leave it empty.
func Assemble(chunks []segment.Chunk, reports []ChunkReport) []Line {
	var events []subtitles.Event
	for i, report := range reports {
		if !report.Status.Resolved() || i >= len(chunks) {
			continue
		}
		chunk := chunks[i]
		for _, l := range report.lines {
			span := subtitles.Event{Start: l.Start, End: l.End}.Span().
				Shift(chunk.Span.Start).
				Clamp(chunk.Span)
			text := textutil.NormalizeJapanese(l.Text)
			if span.Empty() || text == "" {
				continue
			}
			events = append(events, subtitles.Event{Start: span.Start, End: span.End, Text: text})
		}
	}
	slices.SortStableFunc(events, func(a, b subtitles.Event) int {
		return cmp.Compare(a.Start, b.Start)
	})
	lines := make([]Line, 0, len(events))
	for i, ev := range events {
		if i+1 < len(events) {
			if next := events[i+1].Start; next < ev.End && next > ev.Start {
				ev.End = next
			}
		}
		lines = append(lines, Line{Start: ev.Start, End: ev.End, Text: ev.Text})
	}
	return lines
}

func (s *run) assemble(chunks []segment.Chunk) error {
	lines := Assemble(chunks, s.result.Chunks)
	events := make([]subtitles.Event, 0, len(lines))
	for _, l := range lines {
		events = append(events, subtitles.Event{Start: l.Start, End: l.End, Text: l.Text})
	}
	err := fileutil.WriteAtomic(s.result.OutputPath, 0o644, func(w io.Writer) error {
		return subtitles.WriteSRT(w, events)
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "pipeline", "write srt", s.result.OutputPath, err)
	}
	s.result.Lines = len(lines)
	s.result.Written = true

	if failed := s.result.Count(StatusFailed); failed > 0 {
		logging.WarnWithContext(s.logger, "output has gaps", "output_incomplete",
			logging.Int("failed_chunks", failed),
			logging.String("output", s.result.OutputPath),
			logging.String(logging.FieldImpact, "dialogue in failed chunks is missing from the subtitles"),
			logging.String(logging.FieldErrorHint, "rerun the same command to retry only the failed chunks"),
		)
	}
	return nil
}
