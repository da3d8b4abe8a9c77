package pipeline

import (
	"context"
	"time"

	"jimaku/internal/chunkcache"
	"jimaku/internal/media/ffmpeg"
	"jimaku/internal/media/ffprobe"
	"jimaku/internal/media/tracks"
	"jimaku/internal/services/gemini"
	"jimaku/internal/timecode"
)

// MediaSource inspects and demuxes the input video.
type MediaSource interface {
	Probe(ctx context.Context, video string) (ffprobe.Result, error)
	ExtractSubtitle(ctx context.Context, video string, streamIndex int, dest string) error
	ExtractAudio(ctx context.Context, video string, streamIndex int, format ffmpeg.AudioFormat, dest string) error
	SliceAudio(ctx context.Context, audio string, span timecode.Span, format ffmpeg.AudioFormat, dest string) error
}

// Transcriber turns one audio chunk into timed Japanese lines.
type Transcriber interface {
	Model() string
	Transcribe(ctx context.Context, req gemini.Request) ([]gemini.Segment, error)
}

// Cache persists accepted chunk results.
type Cache interface {
	Lookup(ctx context.Context, key string) (chunkcache.Entry, bool, error)
	Store(ctx context.Context, entry chunkcache.Entry) error
}

var (
	_ MediaSource = (*ffmpeg.Tool)(nil)
	_ Transcriber = (*gemini.Client)(nil)
	_ Cache       = (*chunkcache.Store)(nil)
)

// Options controls a single run.
type Options struct {
	// Context is series background, inline or as a file path.
	Context string
	// Model overrides the configured Gemini model.
	Model string
	// ChunkSizeSeconds overrides the configured target chunk length.
	ChunkSizeSeconds int
	// MaxChunks limits how many chunks are processed; 0 processes all.
	MaxChunks int
	// OutputPath defaults to "<video base>.ja.srt" beside the video.
	OutputPath string
	// KeepTemp leaves the run's work directory in place.
	KeepTemp bool
}

// Status is the terminal state of one chunk.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCacheHit Status = "cache_hit"
	StatusAccepted Status = "accepted"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusFatal    Status = "fatal"
)

// Resolved reports whether the chunk contributes lines to the output.
func (s Status) Resolved() bool {
	return s == StatusCacheHit || s == StatusAccepted
}

// Line is one transcript line in absolute video time.
type Line struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// ChunkReport describes how one chunk was resolved.
type ChunkReport struct {
	Index    int
	Span     timecode.Span
	Cut      string
	Status   Status
	Attempts int
	Lines    int
	// Reason is the last rejection reason or error for unresolved chunks.
	Reason string
	Key    string

	lines []chunkcache.Line
}

// Result summarizes a run.
type Result struct {
	RunID        string
	Video        string
	Model        string
	OutputPath   string
	Written      bool
	WorkDir      string
	ContextTrack tracks.Track
	AudioTrack   tracks.Track
	Duration     time.Duration
	Chunks       []ChunkReport
	Lines        int
}

// Count returns how many chunks ended in status.
func (r Result) Count(status Status) int {
	n := 0
	for _, c := range r.Chunks {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Complete reports whether every chunk was resolved or skipped.
func (r Result) Complete() bool {
	for _, c := range r.Chunks {
		if !c.Status.Resolved() && c.Status != StatusSkipped {
			return false
		}
	}
	return true
}
