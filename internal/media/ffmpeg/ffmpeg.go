package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jimaku/internal/media/ffprobe"
	"jimaku/internal/services"
	"jimaku/internal/timecode"
)

// AudioFormat describes an encoding accepted by the transcription backend.
type AudioFormat struct {
	Name      string
	Extension string
	MIMEType  string
	codecArgs []string
}

var audioFormats = map[string]AudioFormat{
	"flac": {Name: "flac", Extension: ".flac", MIMEType: "audio/flac", codecArgs: []string{"-c:a", "flac"}},
	"mp3":  {Name: "mp3", Extension: ".mp3", MIMEType: "audio/mp3", codecArgs: []string{"-c:a", "libmp3lame", "-b:a", "96k"}},
	"wav":  {Name: "wav", Extension: ".wav", MIMEType: "audio/wav", codecArgs: []string{"-c:a", "pcm_s16le"}},
	"ogg":  {Name: "ogg", Extension: ".ogg", MIMEType: "audio/ogg", codecArgs: []string{"-c:a", "libopus", "-b:a", "48k"}},
}

// LookupAudioFormat returns the named format, defaulting to flac.
func LookupAudioFormat(name string) (AudioFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "flac"
	}
	format, ok := audioFormats[name]
	if !ok {
		return AudioFormat{}, fmt.Errorf("unsupported audio format %q", name)
	}
	return format, nil
}

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// Tool runs ffmpeg and ffprobe.
type Tool struct {
	ffmpegBinary  string
	ffprobeBinary string
	commandRunner Runner
}

// New returns a Tool using the given binaries (defaults: ffmpeg, ffprobe).
func New(ffmpegBinary, ffprobeBinary string) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{ffmpegBinary: ffmpegBinary, ffprobeBinary: ffprobeBinary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Tool) WithCommandRunner(runner Runner) *Tool {
	t.commandRunner = runner
	return t
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.ffmpegBinary, args...)
	}
	cmd := exec.CommandContext(ctx, t.ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", t.ffmpegBinary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Probe inspects the video container.
func (t *Tool) Probe(ctx context.Context, video string) (ffprobe.Result, error) {
	result, err := ffprobe.Inspect(ctx, t.ffprobeBinary, video)
	if err != nil {
		return ffprobe.Result{}, t.wrap(ctx, "probe", err)
	}
	return result, nil
}

// ExtractSubtitle demuxes subtitle stream streamIndex into dest. The output
// format follows the extension of dest (.ass, .ssa or .srt).
func (t *Tool) ExtractSubtitle(ctx context.Context, video string, streamIndex int, dest string) error {
	if streamIndex < 0 {
		return services.Wrap(services.ErrExtraction, "ffmpeg", "extract subtitle", fmt.Sprintf("invalid stream index %d", streamIndex), nil)
	}
	codec := "ass"
	if strings.EqualFold(filepath.Ext(dest), ".srt") {
		codec = "srt"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-c:s", codec,
		dest,
	}
	if err := t.run(ctx, args...); err != nil {
		return t.wrap(ctx, "extract subtitle", err)
	}
	return nil
}

// ExtractAudio extracts audio stream streamIndex into dest as mono 16 kHz
// audio in the given format.
func (t *Tool) ExtractAudio(ctx context.Context, video string, streamIndex int, format AudioFormat, dest string) error {
	if streamIndex < 0 {
		return services.Wrap(services.ErrExtraction, "ffmpeg", "extract audio", fmt.Sprintf("invalid stream index %d", streamIndex), nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
	}
	args = append(args, format.codecArgs...)
	args = append(args, dest)
	if err := t.run(ctx, args...); err != nil {
		return t.wrap(ctx, "extract audio", err)
	}
	return nil
}

// SliceAudio cuts [span.Start, span.End) out of an extracted audio file.
func (t *Tool) SliceAudio(ctx context.Context, audio string, span timecode.Span, format AudioFormat, dest string) error {
	if span.Empty() || span.Start < 0 {
		return services.Wrap(services.ErrExtraction, "ffmpeg", "slice audio", "invalid span "+span.String(), nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", seconds(span.Start),
		"-t", seconds(span.Duration()),
		"-i", audio,
		"-vn",
	}
	args = append(args, format.codecArgs...)
	args = append(args, dest)
	if err := t.run(ctx, args...); err != nil {
		return t.wrap(ctx, "slice audio", err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(timecode.ToSeconds(d), 'f', 3, 64)
}

func (t *Tool) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, ctxErr) || strings.Contains(err.Error(), "signal: killed")) {
		return ctxErr
	}
	return services.Wrap(services.ErrExtraction, "ffmpeg", op, "", err)
}
