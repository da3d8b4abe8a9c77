package ffmpeg

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"jimaku/internal/services"
	"jimaku/internal/testsupport"
	"jimaku/internal/timecode"
)

type recorder struct {
	name string
	args []string
	err  error
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.name = name
	r.args = append([]string(nil), args...)
	return r.err
}

func argAfter(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestLookupAudioFormat(t *testing.T) {
	cases := map[string]string{
		"":     "audio/flac",
		"FLAC": "audio/flac",
		"mp3":  "audio/mp3",
		"wav":  "audio/wav",
		"ogg":  "audio/ogg",
	}
	for name, mime := range cases {
		format, err := LookupAudioFormat(name)
		if err != nil {
			t.Fatalf("LookupAudioFormat(%q): %v", name, err)
		}
		if format.MIMEType != mime {
			t.Fatalf("LookupAudioFormat(%q) mime = %q, want %q", name, format.MIMEType, mime)
		}
	}
	if _, err := LookupAudioFormat("aac"); err == nil {
		t.Fatal("expected error for aac")
	}
}

func TestExtractSubtitleArgs(t *testing.T) {
	rec := &recorder{}
	tool := New("", "").WithCommandRunner(rec.run)

	if err := tool.ExtractSubtitle(context.Background(), "/in/video.mkv", 3, "/tmp/context.ass"); err != nil {
		t.Fatalf("ExtractSubtitle: %v", err)
	}
	if rec.name != "ffmpeg" {
		t.Fatalf("binary = %q", rec.name)
	}
	if got := argAfter(rec.args, "-map"); got != "0:3" {
		t.Fatalf("-map = %q, want 0:3", got)
	}
	if got := argAfter(rec.args, "-c:s"); got != "ass" {
		t.Fatalf("-c:s = %q, want ass", got)
	}
	if rec.args[len(rec.args)-1] != "/tmp/context.ass" {
		t.Fatalf("dest = %q", rec.args[len(rec.args)-1])
	}

	if err := tool.ExtractSubtitle(context.Background(), "/in/video.mkv", 4, "/tmp/context.SRT"); err != nil {
		t.Fatalf("ExtractSubtitle srt: %v", err)
	}
	if got := argAfter(rec.args, "-c:s"); got != "srt" {
		t.Fatalf("-c:s = %q, want srt", got)
	}
}

func TestExtractAudioArgs(t *testing.T) {
	rec := &recorder{}
	tool := New("/opt/ffmpeg", "").WithCommandRunner(rec.run)
	format, _ := LookupAudioFormat("mp3")

	if err := tool.ExtractAudio(context.Background(), "/in/video.mkv", 1, format, "/tmp/audio.mp3"); err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if rec.name != "/opt/ffmpeg" {
		t.Fatalf("binary = %q", rec.name)
	}
	checks := map[string]string{
		"-map": "0:1",
		"-ac":  "1",
		"-ar":  "16000",
		"-c:a": "libmp3lame",
	}
	for flag, want := range checks {
		if got := argAfter(rec.args, flag); got != want {
			t.Fatalf("%s = %q, want %q (args %v)", flag, got, want, rec.args)
		}
	}
	for _, flag := range []string{"-vn", "-sn", "-dn"} {
		if !slices.Contains(rec.args, flag) {
			t.Fatalf("missing %s in %v", flag, rec.args)
		}
	}
}

func TestSliceAudioArgs(t *testing.T) {
	rec := &recorder{}
	tool := New("", "").WithCommandRunner(rec.run)
	format, _ := LookupAudioFormat("flac")
	span := timecode.Span{Start: 61500 * time.Millisecond, End: 120250 * time.Millisecond}

	if err := tool.SliceAudio(context.Background(), "/tmp/audio.flac", span, format, "/tmp/chunk-001.flac"); err != nil {
		t.Fatalf("SliceAudio: %v", err)
	}
	if got := argAfter(rec.args, "-ss"); got != "61.500" {
		t.Fatalf("-ss = %q", got)
	}
	if got := argAfter(rec.args, "-t"); got != "58.750" {
		t.Fatalf("-t = %q", got)
	}
	if slices.Index(rec.args, "-ss") > slices.Index(rec.args, "-i") {
		t.Fatalf("-ss should precede -i for fast seeking: %v", rec.args)
	}
}

func TestSliceAudioRejectsEmptySpan(t *testing.T) {
	rec := &recorder{}
	tool := New("", "").WithCommandRunner(rec.run)
	format, _ := LookupAudioFormat("flac")

	err := tool.SliceAudio(context.Background(), "a.flac", timecode.Span{Start: time.Second, End: time.Second}, format, "b.flac")
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if rec.args != nil {
		t.Fatal("runner should not be called for an empty span")
	}
}

func TestRunnerFailureIsExtractionError(t *testing.T) {
	rec := &recorder{err: errors.New("exit status 1")}
	tool := New("", "").WithCommandRunner(rec.run)
	format, _ := LookupAudioFormat("wav")

	err := tool.ExtractAudio(context.Background(), "v.mkv", 2, format, "a.wav")
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if !services.AbortsRun(err) {
		t.Fatal("extraction failure should abort the run")
	}
}

func TestCanceledContextIsNotWrapped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tool := New("", "").WithCommandRunner(func(ctx context.Context, _ string, _ ...string) error {
		return ctx.Err()
	})
	format, _ := LookupAudioFormat("flac")

	err := tool.ExtractAudio(ctx, "v.mkv", 1, format, "a.flac")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProbeUsesConfiguredBinary(t *testing.T) {
	dir := t.TempDir()
	testsupport.StubBinary(t, dir, "fakeprobe", `echo '{"streams":[{"index":0,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"12.5"}}'`)
	tool := New("", "fakeprobe")

	result, err := tool.Probe(context.Background(), "video.mkv")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("audio streams = %d", result.AudioStreamCount())
	}
	if result.Duration() != 12500*time.Millisecond {
		t.Fatalf("duration = %v", result.Duration())
	}
}

func TestProbeFailure(t *testing.T) {
	dir := t.TempDir()
	testsupport.StubBinary(t, dir, "brokenprobe", `echo "no such file" >&2; exit 1`)
	tool := New("", "brokenprobe")

	_, err := tool.Probe(context.Background(), "missing.mkv")
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if !strings.Contains(err.Error(), "probe") {
		t.Fatalf("error should mention probe: %v", err)
	}
}
