package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jimaku/internal/chunkcache"
	"jimaku/internal/logging"
	"jimaku/internal/segment"
	"jimaku/internal/services"
	"jimaku/internal/services/gemini"
	"jimaku/internal/subtitles"
	"jimaku/internal/textutil"
	"jimaku/internal/timecode"
	"jimaku/internal/validate"
)

// processChunks resolves chunks in order. It returns only errors that abort
// the run; per-chunk failures are recorded in the reports.
func (s *run) processChunks(ctx context.Context, chunks []segment.Chunk, audioPath string) error {
	limit := len(chunks)
	if s.opts.MaxChunks > 0 && s.opts.MaxChunks < limit {
		limit = s.opts.MaxChunks
	}
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunkCtx := services.WithChunkIndex(ctx, chunks[i].Index)
		err := s.processChunk(chunkCtx, chunks[i], audioPath, &s.result.Chunks[i])
		if s.progress != nil {
			s.progress(s.result.Chunks[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// processChunk drives one chunk to a terminal state. The attempt loop is
// bounded by maxAttempts; only errors that abort the run are returned.
func (s *run) processChunk(ctx context.Context, chunk segment.Chunk, audioPath string, report *ChunkReport) error {
	logger := logging.WithContext(ctx, s.logger)
	contextText := formatContext(chunk)
	report.Key = chunkcache.Fingerprint(chunkcache.KeyInput{
		Video:         s.identity,
		ChunkIndex:    chunk.Index,
		Span:          chunk.Span,
		Model:         s.model,
		ContextHash:   chunkcache.HashText(s.seriesContext + "\x00" + contextText),
		PromptVersion: gemini.PromptVersion,
	})

	entry, found, err := s.cache.Lookup(ctx, report.Key)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WarnWithContext(logger, "cache lookup failed; transcribing", "cache_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk is transcribed again"),
			logging.String(logging.FieldErrorHint, "check the cache database with jimaku cache stats"),
		)
	case found:
		report.Status = StatusCacheHit
		report.Lines = len(entry.Lines)
		report.lines = entry.Lines
		logger.Debug("chunk cache hit", logging.Int("lines", len(entry.Lines)))
		return nil
	}

	if chunk.Silent() && !s.cfg.Pipeline.TranscribeSilentChunks {
		report.Status = StatusSkipped
		logger.Debug("silent chunk skipped", logging.String("span", chunk.Span.String()))
		return nil
	}

	clipPath := filepath.Join(s.workDir, fmt.Sprintf("chunk-%04d%s", chunk.Index, s.format.Extension))
	audio, err := s.chunkAudio(ctx, audioPath, chunk, clipPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Status = StatusPending
			return ctxErr
		}
		report.Status = StatusFailed
		report.Reason = err.Error()
		logging.WarnWithContext(logger, "chunk audio unavailable", "chunk_audio_failed",
			logging.Error(err),
			logging.String("span", chunk.Span.String()),
			logging.String(logging.FieldImpact, "chunk is missing from the output"),
			logging.String(logging.FieldErrorHint, "check free space in the work directory, then rerun to retry the chunk"),
		)
		return nil
	}
	defer func() {
		if !s.opts.KeepTemp {
			_ = os.Remove(clipPath)
		}
	}()

	in := validate.Input{
		ChunkDuration: chunk.Duration(),
		HasContext:    !chunk.Silent(),
		ContextSpeech: contextSpeech(chunk),
	}
	hint := ""
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		report.Attempts = attempt
		attemptLogger := logger.With(logging.Attempt(attempt))

		segments, err := s.transcriber.Transcribe(ctx, gemini.Request{
			Model:         s.model,
			Audio:         audio,
			MIMEType:      s.format.MIMEType,
			ContextText:   contextText,
			SeriesContext: s.seriesContext,
			Hint:          hint,
		})
		if err != nil {
			if services.AbortsRun(err) {
				if errors.Is(err, context.Canceled) {
					report.Status = StatusPending
					return err
				}
				report.Status = StatusFatal
				report.Reason = err.Error()
				logging.ErrorWithContext(attemptLogger, "fatal backend error; stopping run", "backend_fatal",
					logging.Error(err),
					logging.String(logging.FieldImpact, "remaining chunks are not transcribed; accepted chunks stay cached"),
					logging.String(logging.FieldErrorHint, "check the API key, model name and quota, then rerun to resume"),
				)
				return err
			}
			report.Reason = failureReason(err)
			if !services.Retryable(err) {
				logging.WarnWithContext(attemptLogger, "chunk attempt failed; not retrying", "chunk_attempt_failed",
					logging.Error(err),
					logging.String("reason", report.Reason),
					logging.String(logging.FieldImpact, "chunk is missing from the output"),
				)
				break
			}
			hint = hintForError(err)
			logging.WarnWithContext(attemptLogger, "chunk attempt failed", "chunk_attempt_failed",
				logging.Error(err),
				logging.String("reason", report.Reason),
				logging.String(logging.FieldImpact, "chunk is retried"),
				logging.String(logging.FieldErrorHint, "persistent failures leave a gap in the output"),
			)
			continue
		}

		in.Lines = toValidateLines(segments)
		verdict := validate.Validate(in, s.thresholds)
		if !verdict.Accepted {
			report.Reason = verdict.Reason
			hint = hintForRejection(verdict, in.ChunkDuration, s.thresholds)
			logging.WarnWithContext(attemptLogger, "chunk transcription rejected", "chunk_rejected",
				logging.Error(verdict.Err()),
				logging.String("reason", verdict.Reason),
				logging.Int("line", verdict.Line),
				logging.String(logging.FieldImpact, "chunk is re-prompted with a correction"),
				logging.String(logging.FieldErrorHint, "frequent rejections may need looser [validation] thresholds"),
			)
			continue
		}

		lines := make([]chunkcache.Line, 0, len(in.Lines))
		for _, l := range in.Lines {
			lines = append(lines, chunkcache.Line{Start: l.Start, End: l.End, Text: l.Text})
		}
		report.Status = StatusAccepted
		report.Reason = ""
		report.Lines = len(lines)
		report.lines = lines
		s.store(ctx, chunk, report.Key, lines)
		attemptLogger.Info("chunk accepted",
			logging.Int("lines", len(lines)),
			logging.String("span", chunk.Span.String()),
			logging.String(logging.FieldEventType, "chunk_accepted"),
		)
		return nil
	}

	report.Status = StatusFailed
	logging.WarnWithContext(logger, "chunk failed after all attempts", "chunk_failed",
		logging.Int("attempts", report.Attempts),
		logging.String("reason", report.Reason),
		logging.String("span", chunk.Span.String()),
		logging.String(logging.FieldImpact, "chunk is missing from the output"),
		logging.String(logging.FieldErrorHint, "rerun later to retry only the failed chunks"),
	)
	return nil
}

// chunkAudio cuts the chunk's span out of the extracted track and reads it.
func (s *run) chunkAudio(ctx context.Context, audioPath string, chunk segment.Chunk, clipPath string) ([]byte, error) {
	if err := s.media.SliceAudio(ctx, audioPath, chunk.Span, s.format, clipPath); err != nil {
		return nil, err
	}
	audio, err := os.ReadFile(clipPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "pipeline", "read chunk audio", clipPath, err)
	}
	return audio, nil
}

// store persists an accepted result. A failed write only costs a repeat
// transcription on the next run, so it is logged rather than returned.
func (s *run) store(ctx context.Context, chunk segment.Chunk, key string, lines []chunkcache.Line) {
	err := s.cache.Store(ctx, chunkcache.Entry{
		Key:        key,
		Video:      s.identity.String(),
		ChunkIndex: chunk.Index,
		Span:       chunk.Span,
		Model:      s.model,
		Lines:      lines,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "cache store failed", "cache_store_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk is transcribed again on the next run"),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the cache directory"),
		)
	}
}

// toValidateLines normalizes model text and drops lines left empty.
func toValidateLines(segments []gemini.Segment) []validate.Line {
	lines := make([]validate.Line, 0, len(segments))
	for _, seg := range segments {
		text := textutil.NormalizeJapanese(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, validate.Line{Start: seg.Start, End: seg.End, Text: text})
	}
	return lines
}

// formatContext renders the chunk's English dialogue with chunk-relative
// timestamps.
func formatContext(chunk segment.Chunk) string {
	if chunk.Silent() {
		return ""
	}
	var b strings.Builder
	for _, ev := range chunk.Events {
		span := ev.Span().Clamp(chunk.Span).Shift(-chunk.Span.Start)
		fmt.Fprintf(&b, "[%s - %s] %s\n",
			timecode.FormatClock(span.Start),
			timecode.FormatClock(span.End),
			strings.ReplaceAll(ev.Text, "\n", " / "),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// contextSpeech is the dialogue time of the chunk's context events inside
// the chunk span.
func contextSpeech(chunk segment.Chunk) time.Duration {
	clamped := make([]subtitles.Event, 0, len(chunk.Events))
	for _, ev := range chunk.Events {
		span := ev.Span().Clamp(chunk.Span)
		if span.Empty() {
			continue
		}
		clamped = append(clamped, subtitles.Event{Start: span.Start, End: span.End, Text: ev.Text})
	}
	return subtitles.SpeechDuration(clamped)
}
