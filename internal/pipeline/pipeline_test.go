package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"jimaku/internal/chunkcache"
	"jimaku/internal/config"
	"jimaku/internal/media/ffmpeg"
	"jimaku/internal/media/ffprobe"
	"jimaku/internal/segment"
	"jimaku/internal/services"
	"jimaku/internal/services/gemini"
	"jimaku/internal/subtitles"
	"jimaku/internal/testsupport"
	"jimaku/internal/timecode"
)

// dialogue returns 120 English lines of 2.5s every 5s. With a 60s target
// the planner cuts after every 12th line, giving ten chunks
// [0,58) [58,118) ... [538,600).
func dialogue() []subtitles.Event {
	events := make([]subtitles.Event, 0, 120)
	for j := 0; j < 120; j++ {
		start := time.Duration(j) * 5 * time.Second
		events = append(events, subtitles.Event{
			Start: start,
			End:   start + 2500*time.Millisecond,
			Text:  fmt.Sprintf("This is line number %d.", j),
		})
	}
	return events
}

func assTime(d time.Duration) string {
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

type fakeMedia struct {
	duration string
	streams  []ffprobe.Stream
	events   []subtitles.Event
	slices   int
	// sliceErr, when set, can fail the slice for a span.
	sliceErr func(span timecode.Span) error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		duration: "600.000",
		streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Tags: map[string]string{"language": "jpn"}},
			{Index: 2, CodecType: "subtitle", CodecName: "ass", Tags: map[string]string{"language": "eng", "title": "Signs & Songs"}},
			{Index: 3, CodecType: "subtitle", CodecName: "ass", Tags: map[string]string{"language": "eng", "title": "Full Subtitles"}},
		},
		events: dialogue(),
	}
}

func (m *fakeMedia) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{Streams: m.streams, Format: ffprobe.Format{Duration: m.duration}}, nil
}

func (m *fakeMedia) ExtractSubtitle(_ context.Context, _ string, streamIndex int, dest string) error {
	if streamIndex != 3 {
		return fmt.Errorf("unexpected subtitle stream %d", streamIndex)
	}
	var b strings.Builder
	b.WriteString("[Script Info]\nScriptType: v4.00+\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ev := range m.events {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTime(ev.Start), assTime(ev.End), ev.Text)
	}
	return os.WriteFile(dest, []byte(b.String()), 0o644)
}

func (m *fakeMedia) ExtractAudio(_ context.Context, _ string, streamIndex int, _ ffmpeg.AudioFormat, dest string) error {
	if streamIndex != 1 {
		return fmt.Errorf("unexpected audio stream %d", streamIndex)
	}
	return os.WriteFile(dest, []byte("audio"), 0o644)
}

// SliceAudio writes the span start in milliseconds so the fake transcriber
// can tell chunks apart.
func (m *fakeMedia) SliceAudio(_ context.Context, _ string, span timecode.Span, _ ffmpeg.AudioFormat, dest string) error {
	m.slices++
	if m.sliceErr != nil {
		if err := m.sliceErr(span); err != nil {
			return err
		}
	}
	return os.WriteFile(dest, []byte(strconv.FormatInt(span.Start.Milliseconds(), 10)), 0o644)
}

type fakeTranscriber struct {
	model    string
	calls    int
	attempts map[int]int
	requests map[int][]gemini.Request
	respond  func(chunk, attempt int) ([]gemini.Segment, error)
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		model:    "fake-model",
		attempts: map[int]int{},
		requests: map[int][]gemini.Request{},
	}
}

func (f *fakeTranscriber) Model() string { return f.model }

func (f *fakeTranscriber) Transcribe(_ context.Context, req gemini.Request) ([]gemini.Segment, error) {
	f.calls++
	startMS, err := strconv.Atoi(string(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("unexpected audio payload %q", req.Audio)
	}
	chunk := (startMS + 2000) / 60000
	f.attempts[chunk]++
	f.requests[chunk] = append(f.requests[chunk], req)
	if f.respond != nil {
		return f.respond(chunk, f.attempts[chunk])
	}
	return goodSegments(chunk), nil
}

func goodSegments(chunk int) []gemini.Segment {
	texts := []string{"おはようございます", "今日はいい天気ですね", "どこへ行くの？", fmt.Sprintf("第%d章です", chunk)}
	segs := make([]gemini.Segment, 0, len(texts))
	for i, text := range texts {
		start := time.Duration(i) * 5 * time.Second
		segs = append(segs, gemini.Segment{Start: start, End: start + 2500*time.Millisecond, Text: text})
	}
	return segs
}

type harness struct {
	cfg   *config.Config
	video string
	cache *chunkcache.Store
	media *fakeMedia
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(t.TempDir(), "episode01.mkv")
	if err := os.WriteFile(video, []byte("not really a matroska file"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &harness{
		cfg:   cfg,
		video: video,
		cache: testsupport.MustOpenCache(t, cfg),
		media: newFakeMedia(),
	}
}

func (h *harness) run(t *testing.T, tr *fakeTranscriber, opts Options) (Result, error) {
	t.Helper()
	return NewRunner(h.cfg, h.media, tr, h.cache).Run(context.Background(), h.video, opts)
}

func statuses(res Result) []Status {
	out := make([]Status, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		out = append(out, c.Status)
	}
	return out
}

func readSRT(t *testing.T, path string) []subtitles.Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()
	events, err := subtitles.ParseSRT(file)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return events
}

func TestRunWritesSubtitlesAndReusesCache(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(res.Chunks) != 10 || res.Count(StatusAccepted) != 10 {
		t.Fatalf("statuses = %v", statuses(res))
	}
	if tr.calls != 10 {
		t.Fatalf("calls = %d, want 10", tr.calls)
	}
	wantOutput := strings.TrimSuffix(h.video, ".mkv") + ".ja.srt"
	if res.OutputPath != wantOutput || !res.Written {
		t.Fatalf("output = %q written=%v", res.OutputPath, res.Written)
	}
	if res.ContextTrack.Index != 3 || res.AudioTrack.Index != 1 {
		t.Fatalf("tracks = %s / %s", res.ContextTrack.Label(), res.AudioTrack.Label())
	}
	events := readSRT(t, res.OutputPath)
	if len(events) != 40 || res.Lines != 40 {
		t.Fatalf("lines = %d (result %d), want 40", len(events), res.Lines)
	}
	// Chunk 1 starts at 58s; its first line is re-based to video time.
	if events[4].Start != 58*time.Second || events[4].Text != "おはようございます" {
		t.Fatalf("event 4 = %+v", events[4])
	}
	if events[3].Text != "第0章です" {
		t.Fatalf("event 3 = %+v", events[3])
	}
	first, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}

	again := newFakeTranscriber()
	res2, err := h.run(t, again, Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.calls != 0 {
		t.Fatalf("second run made %d backend calls", again.calls)
	}
	if res2.Count(StatusCacheHit) != 10 {
		t.Fatalf("statuses = %v", statuses(res2))
	}
	second, err := os.ReadFile(res2.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("rerun from cache produced different output")
	}
}

func TestModelChangeMissesCache(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, newFakeTranscriber(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	other := newFakeTranscriber()
	res, err := h.run(t, other, Options{Model: "other-model"})
	if err != nil {
		t.Fatalf("Run other model: %v", err)
	}
	if other.calls != 10 || res.Count(StatusAccepted) != 10 {
		t.Fatalf("calls = %d statuses = %v", other.calls, statuses(res))
	}
	if got := other.requests[0][0].Model; got != "other-model" {
		t.Fatalf("request model = %q", got)
	}

	original := newFakeTranscriber()
	res, err = h.run(t, original, Options{})
	if err != nil {
		t.Fatalf("Run original model: %v", err)
	}
	if original.calls != 0 || res.Count(StatusCacheHit) != 10 {
		t.Fatalf("calls = %d statuses = %v", original.calls, statuses(res))
	}
}

func TestSeriesContextChangeMissesCache(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	if _, err := h.run(t, tr, Options{Context: "主人公: 後藤ひとり"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tr.requests[0][0].SeriesContext; got != "主人公: 後藤ひとり" {
		t.Fatalf("series context = %q", got)
	}

	changed := newFakeTranscriber()
	if _, err := h.run(t, changed, Options{Context: "主人公: 伊地知虹夏"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed.calls != 10 {
		t.Fatalf("calls = %d, want 10", changed.calls)
	}

	same := newFakeTranscriber()
	if _, err := h.run(t, same, Options{Context: "主人公: 後藤ひとり"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if same.calls != 0 {
		t.Fatalf("calls = %d, want 0", same.calls)
	}
}

func TestRejectedChunkFailsAndRunContinues(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	tr.respond = func(chunk, _ int) ([]gemini.Segment, error) {
		if chunk == 3 {
			return []gemini.Segment{{Start: 5 * time.Second, End: 2 * time.Second, Text: "逆さま"}}, nil
		}
		return goodSegments(chunk), nil
	}

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	report := res.Chunks[3]
	if report.Status != StatusFailed || report.Attempts != 3 || report.Reason != "invalid_timestamp" {
		t.Fatalf("chunk 3 report = %+v", report)
	}
	if res.Count(StatusAccepted) != 9 || res.Complete() {
		t.Fatalf("statuses = %v", statuses(res))
	}
	reqs := tr.requests[3]
	if len(reqs) != 3 || reqs[0].Hint != "" || !strings.Contains(reqs[1].Hint, "start_offset") {
		t.Fatalf("unexpected retry hints: %d requests, hint[1] = %q", len(reqs), reqs[len(reqs)-1].Hint)
	}

	events := readSRT(t, res.OutputPath)
	if len(events) != 36 {
		t.Fatalf("lines = %d, want 36", len(events))
	}
	for _, ev := range events {
		if ev.Start >= report.Span.Start && ev.Start < report.Span.End {
			t.Fatalf("failed chunk contributed %+v", ev)
		}
	}

	// Failed chunks were not cached, so a rerun retries only them.
	rerun := newFakeTranscriber()
	res, err = h.run(t, rerun, Options{})
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rerun.calls != 1 || res.Chunks[3].Status != StatusAccepted || res.Count(StatusCacheHit) != 9 {
		t.Fatalf("rerun calls = %d statuses = %v", rerun.calls, statuses(res))
	}
}

func TestSliceFailureFailsChunkOnly(t *testing.T) {
	h := newHarness(t)
	h.media.sliceErr = func(span timecode.Span) error {
		if (span.Start.Milliseconds()+2000)/60000 == 2 {
			return services.Wrap(services.ErrExtraction, "ffmpeg", "slice audio", "chunk-0002.flac", errors.New("no space left on device"))
		}
		return nil
	}
	tr := newFakeTranscriber()

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	report := res.Chunks[2]
	if report.Status != StatusFailed || !strings.Contains(report.Reason, "no space left") || report.Attempts != 0 {
		t.Fatalf("chunk 2 report = %+v", report)
	}
	if res.Count(StatusAccepted) != 9 || !res.Written {
		t.Fatalf("statuses = %v written = %v", statuses(res), res.Written)
	}
	if tr.attempts[2] != 0 {
		t.Fatalf("chunk 2 was transcribed %d times", tr.attempts[2])
	}
	if got := len(readSRT(t, res.OutputPath)); got != 36 {
		t.Fatalf("lines = %d, want 36", got)
	}
}

func TestNonRetryableErrorEndsChunkAttempts(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	tr.respond = func(chunk, _ int) ([]gemini.Segment, error) {
		if chunk == 1 {
			return nil, services.Wrap(services.ErrExternalTool, "gemini", "transcribe", "", errors.New("encode request"))
		}
		return goodSegments(chunk), nil
	}

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report := res.Chunks[1]; report.Status != StatusFailed || report.Attempts != 1 {
		t.Fatalf("chunk 1 report = %+v", report)
	}
	if res.Count(StatusAccepted) != 9 {
		t.Fatalf("statuses = %v", statuses(res))
	}
}

func TestInvalidResponseIsRetriedWithStricterPrompt(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	tr.respond = func(chunk, attempt int) ([]gemini.Segment, error) {
		if chunk == 0 && attempt == 1 {
			return nil, services.Wrap(services.ErrInvalidResponse, "gemini", "transcribe", "", errors.New("unexpected end of JSON input"))
		}
		return goodSegments(chunk), nil
	}

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Chunks[0].Status != StatusAccepted || res.Chunks[0].Attempts != 2 {
		t.Fatalf("chunk 0 report = %+v", res.Chunks[0])
	}
	if hint := tr.requests[0][1].Hint; !strings.Contains(hint, "JSON") {
		t.Fatalf("hint = %q", hint)
	}
}

func TestTransientExhaustionFailsChunkOnly(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	tr.respond = func(chunk, _ int) ([]gemini.Segment, error) {
		if chunk == 7 {
			return nil, services.Wrap(services.ErrTransientBackend, "gemini", "transcribe", "http 503", nil)
		}
		return goodSegments(chunk), nil
	}

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Chunks[7].Status != StatusFailed || res.Chunks[7].Reason != reasonTransient {
		t.Fatalf("chunk 7 report = %+v", res.Chunks[7])
	}
	if res.Chunks[8].Status != StatusAccepted {
		t.Fatalf("chunk 8 report = %+v", res.Chunks[8])
	}
}

func TestFatalErrorStopsRunAndKeepsProgress(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()
	tr.respond = func(chunk, _ int) ([]gemini.Segment, error) {
		if chunk == 5 {
			return nil, services.Wrap(services.ErrFatalBackend, "gemini", "transcribe", "http 401", nil)
		}
		return goodSegments(chunk), nil
	}

	res, err := h.run(t, tr, Options{})
	if !errors.Is(err, services.ErrFatalBackend) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	want := []Status{
		StatusAccepted, StatusAccepted, StatusAccepted, StatusAccepted, StatusAccepted,
		StatusFatal, StatusPending, StatusPending, StatusPending, StatusPending,
	}
	got := statuses(res)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
	if tr.attempts[5] != 1 {
		t.Fatalf("fatal error retried %d times", tr.attempts[5])
	}
	if res.Written {
		t.Fatal("output written after a fatal error")
	}
	if _, err := os.Stat(res.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}

	resumed := newFakeTranscriber()
	res, err = h.run(t, resumed, Options{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.calls != 5 || res.Count(StatusCacheHit) != 5 || res.Count(StatusAccepted) != 5 {
		t.Fatalf("resume calls = %d statuses = %v", resumed.calls, statuses(res))
	}
	for chunk := range resumed.attempts {
		if chunk < 5 {
			t.Fatalf("chunk %d re-transcribed after resume", chunk)
		}
	}
}

func TestCanceledRunLeavesChunkPending(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := newFakeTranscriber()
	tr.respond = func(chunk, _ int) ([]gemini.Segment, error) {
		if chunk == 2 {
			cancel()
			return nil, context.Canceled
		}
		return goodSegments(chunk), nil
	}

	res, err := NewRunner(h.cfg, h.media, tr, h.cache).Run(ctx, h.video, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Count(StatusAccepted) != 2 || res.Chunks[2].Status != StatusPending {
		t.Fatalf("statuses = %v", statuses(res))
	}
}

func TestMaxChunksLimitsWork(t *testing.T) {
	h := newHarness(t)
	tr := newFakeTranscriber()

	res, err := h.run(t, tr, Options{MaxChunks: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.calls != 3 || res.Count(StatusAccepted) != 3 || res.Count(StatusPending) != 7 {
		t.Fatalf("calls = %d statuses = %v", tr.calls, statuses(res))
	}
	if got := len(readSRT(t, res.OutputPath)); got != 12 {
		t.Fatalf("lines = %d, want 12", got)
	}
}

func TestSilentChunksAreSkipped(t *testing.T) {
	h := newHarness(t)
	h.media.duration = "700.000"
	tr := newFakeTranscriber()

	res, err := h.run(t, tr, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Chunks) != 12 || res.Count(StatusSkipped) != 2 {
		t.Fatalf("statuses = %v", statuses(res))
	}
	if tr.calls != 10 {
		t.Fatalf("calls = %d, want 10", tr.calls)
	}
	if !res.Complete() {
		t.Fatal("skipped chunks should count as complete")
	}
}

func TestChunkSizeOverride(t *testing.T) {
	h := newHarness(t)
	res, err := h.run(t, newFakeTranscriber(), Options{ChunkSizeSeconds: 30, MaxChunks: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Chunks) < 19 {
		t.Fatalf("chunks = %d, want about 20 with a 30s target", len(res.Chunks))
	}
	if res.Chunks[0].Span.End > 30*time.Second {
		t.Fatalf("first chunk = %s", res.Chunks[0].Span)
	}
}

func TestKeepTemp(t *testing.T) {
	h := newHarness(t)
	res, err := h.run(t, newFakeTranscriber(), Options{KeepTemp: true, MaxChunks: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WorkDir == "" {
		t.Fatal("work dir not reported")
	}
	for _, name := range []string{"context.ass", "audio.flac", "chunk-0000.flac"} {
		if _, err := os.Stat(filepath.Join(res.WorkDir, name)); err != nil {
			t.Fatalf("expected %s in work dir: %v", name, err)
		}
	}

	res, err = h.run(t, newFakeTranscriber(), Options{MaxChunks: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WorkDir != "" {
		t.Fatalf("work dir %q should have been removed", res.WorkDir)
	}
}

func TestRunAbortsWithoutContextTrack(t *testing.T) {
	h := newHarness(t)
	h.media.streams = h.media.streams[:2]
	tr := newFakeTranscriber()

	_, err := h.run(t, tr, Options{})
	if !errors.Is(err, services.ErrNoSuitableTrack) {
		t.Fatalf("expected ErrNoSuitableTrack, got %v", err)
	}
	if tr.calls != 0 {
		t.Fatalf("calls = %d", tr.calls)
	}
}

func TestRunAbortsWhenContextHasNoEnglish(t *testing.T) {
	h := newHarness(t)
	h.media.events = []subtitles.Event{{Start: 0, End: 2 * time.Second, Text: "おはよう"}}

	_, err := h.run(t, newFakeTranscriber(), Options{})
	if !errors.Is(err, services.ErrNoSuitableTrack) {
		t.Fatalf("expected ErrNoSuitableTrack, got %v", err)
	}
}

func TestRunMissingVideo(t *testing.T) {
	h := newHarness(t)
	_, err := NewRunner(h.cfg, h.media, newFakeTranscriber(), h.cache).
		Run(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"), Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRefusesLockedCache(t *testing.T) {
	h := newHarness(t)
	lock, err := chunkcache.AcquireLock(h.cfg.Paths.CacheDir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, err = h.run(t, newFakeTranscriber(), Options{})
	if !errors.Is(err, chunkcache.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestProgressCallback(t *testing.T) {
	h := newHarness(t)
	var seen []int
	runner := NewRunner(h.cfg, h.media, newFakeTranscriber(), h.cache, WithProgress(func(r ChunkReport) {
		seen = append(seen, r.Index)
	}))
	if _, err := runner.Run(context.Background(), h.video, Options{MaxChunks: 4}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 4 || seen[3] != 3 {
		t.Fatalf("progress = %v", seen)
	}
}

func TestAssembleRebasesAndClamps(t *testing.T) {
	chunks := []segment.Chunk{
		{Index: 0, Span: timecode.Span{Start: 0, End: 10 * time.Second}},
		{Index: 1, Span: timecode.Span{Start: 10 * time.Second, End: 20 * time.Second}},
		{Index: 2, Span: timecode.Span{Start: 20 * time.Second, End: 30 * time.Second}},
	}
	reports := []ChunkReport{
		{Status: StatusAccepted, lines: []chunkcache.Line{
			{Start: 9 * time.Second, End: 10500 * time.Millisecond, Text: "端 まで"},
		}},
		{Status: StatusFailed, lines: []chunkcache.Line{{Start: 0, End: time.Second, Text: "捨てる"}}},
		{Status: StatusCacheHit, lines: []chunkcache.Line{
			{Start: time.Second, End: 2 * time.Second, Text: "ｶﾀｶﾅ"},
			{Start: 3 * time.Second, End: 4 * time.Second, Text: "  "},
		}},
	}

	lines := Assemble(chunks, reports)
	if len(lines) != 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].End != 10*time.Second || lines[0].Text != "端まで" {
		t.Fatalf("line 0 = %+v", lines[0])
	}
	if lines[1].Start != 21*time.Second || lines[1].Text != "カタカナ" {
		t.Fatalf("line 1 = %+v", lines[1])
	}
}

func TestAssembleKeepsOverlappingLinesApart(t *testing.T) {
	chunks := []segment.Chunk{{Index: 0, Span: timecode.Span{Start: 0, End: 10 * time.Second}}}
	reports := []ChunkReport{{Status: StatusAccepted, lines: []chunkcache.Line{
		{Start: 0, End: 400 * time.Millisecond, Text: "うん"},
		{Start: 200 * time.Millisecond, End: 1400 * time.Millisecond, Text: "そうだね"},
		{Start: 2 * time.Second, End: 3 * time.Second, Text: "行こう"},
		{Start: 2 * time.Second, End: 2500 * time.Millisecond, Text: "待って"},
	}}}

	lines := Assemble(chunks, reports)
	want := []Line{
		{Start: 0, End: 200 * time.Millisecond, Text: "うん"},
		{Start: 200 * time.Millisecond, End: 1400 * time.Millisecond, Text: "そうだね"},
		{Start: 2 * time.Second, End: 3 * time.Second, Text: "行こう"},
		{Start: 2 * time.Second, End: 2500 * time.Millisecond, Text: "待って"},
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %+v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestFormatContext(t *testing.T) {
	chunk := segment.Chunk{
		Span: timecode.Span{Start: 58 * time.Second, End: 118 * time.Second},
		Events: []subtitles.Event{
			{Start: 60 * time.Second, End: 62500 * time.Millisecond, Text: "Hello.\nAgain."},
		},
	}
	if got := formatContext(chunk); got != "[00:02.000 - 00:04.500] Hello. / Again." {
		t.Fatalf("formatContext = %q", got)
	}
	if got := formatContext(segment.Chunk{Span: chunk.Span}); got != "" {
		t.Fatalf("silent chunk context = %q", got)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	if got := DefaultOutputPath("/media/show/ep01.mkv"); got != "/media/show/ep01.ja.srt" {
		t.Fatalf("DefaultOutputPath = %q", got)
	}
}
