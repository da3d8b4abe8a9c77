package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"jimaku/internal/chunkcache"
	"jimaku/internal/config"
	"jimaku/internal/logging"
	"jimaku/internal/media/ffmpeg"
	"jimaku/internal/segment"
	"jimaku/internal/seriesctx"
	"jimaku/internal/services"
	"jimaku/internal/timecode"
	"jimaku/internal/validate"
)

// Runner executes runs against one configuration.
type Runner struct {
	cfg         *config.Config
	media       MediaSource
	transcriber Transcriber
	cache       Cache
	logger      *slog.Logger
	progress    func(ChunkReport)
	identify    func(path string) (chunkcache.VideoIdentity, error)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress registers a callback invoked as each chunk reaches a terminal
// state.
func WithProgress(fn func(ChunkReport)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner wires the collaborators.
func NewRunner(cfg *config.Config, media MediaSource, transcriber Transcriber, cache Cache, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:         cfg,
		media:       media,
		transcriber: transcriber,
		cache:       cache,
		logger:      logging.NewNop(),
		identify:    chunkcache.IdentifyVideo,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "pipeline")
	return r
}

// run carries the per-run state shared by the stages.
type run struct {
	*Runner
	opts          Options
	logger        *slog.Logger
	video         string
	model         string
	seriesContext string
	format        ffmpeg.AudioFormat
	workDir       string
	identity      chunkcache.VideoIdentity
	thresholds    validate.Thresholds
	maxAttempts   int
	result        Result
}

// Run transcribes videoPath and writes the SRT. The returned Result is
// populated even when err is non-nil. A fatal backend or extraction error
// stops the run without writing output; chunks accepted before it stay
// cached.
func (r *Runner) Run(ctx context.Context, videoPath string, opts Options) (Result, error) {
	if r.cfg == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "configuration required", nil)
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	state := &run{
		Runner:      r,
		opts:        opts,
		logger:      logging.WithContext(ctx, r.logger),
		thresholds:  validate.FromConfig(r.cfg.Validation),
		maxAttempts: max(1, r.cfg.Pipeline.MaxChunkAttempts),
		result:      Result{RunID: runID},
	}
	err := state.execute(ctx, videoPath)
	return state.result, err
}

func (s *run) execute(ctx context.Context, videoPath string) error {
	if err := s.prepare(videoPath); err != nil {
		return err
	}

	lock, err := chunkcache.AcquireLock(s.cfg.Paths.CacheDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock cache", "", err)
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			s.logger.Warn("cache lock release failed", logging.Error(releaseErr))
		}
	}()

	if err := os.MkdirAll(s.cfg.Paths.WorkDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "create work dir", "", err)
	}
	s.workDir, err = os.MkdirTemp(s.cfg.Paths.WorkDir, "run-"+s.result.RunID[:8]+"-")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "create work dir", "", err)
	}
	s.result.WorkDir = s.workDir
	defer s.cleanup()

	s.logger.Info("run started",
		logging.String("video", s.video),
		logging.String("model", s.model),
		logging.String("output", s.result.OutputPath),
		logging.String(logging.FieldEventType, "run_started"),
	)
	started := time.Now()

	media, err := s.extract(services.WithStage(ctx, "extract"))
	if err != nil {
		return err
	}
	chunks, err := s.plan(media)
	if err != nil {
		return err
	}
	if err := s.processChunks(services.WithStage(ctx, "transcribe"), chunks, media.audioPath); err != nil {
		return err
	}
	if err := s.assemble(chunks); err != nil {
		return err
	}

	s.logger.Info("run finished",
		logging.String("output", s.result.OutputPath),
		logging.Int("lines", s.result.Lines),
		logging.Int("chunks", len(s.result.Chunks)),
		logging.Int("cache_hits", s.result.Count(StatusCacheHit)),
		logging.Int("accepted", s.result.Count(StatusAccepted)),
		logging.Int("failed", s.result.Count(StatusFailed)),
		logging.Int("pending", s.result.Count(StatusPending)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "run_finished"),
	)
	return nil
}

// prepare resolves inputs that do not need external tools.
func (s *run) prepare(videoPath string) error {
	video, err := filepath.Abs(strings.TrimSpace(videoPath))
	if err != nil || strings.TrimSpace(videoPath) == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "resolve video", fmt.Sprintf("invalid video path %q", videoPath), err)
	}
	info, err := os.Stat(video)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "pipeline", "resolve video", video, err)
		}
		return services.Wrap(services.ErrExtraction, "pipeline", "resolve video", video, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "pipeline", "resolve video", video+" is a directory", nil)
	}
	s.video = video
	s.result.Video = video

	s.model = strings.TrimPrefix(strings.TrimSpace(s.opts.Model), "models/")
	if s.model == "" && s.transcriber != nil {
		s.model = s.transcriber.Model()
	}
	if s.model == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "resolve model", "no gemini model configured", nil)
	}
	s.result.Model = s.model

	s.seriesContext, err = seriesctx.Resolve(s.opts.Context)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "load context", "", err)
	}

	s.format, err = ffmpeg.LookupAudioFormat(s.cfg.Pipeline.AudioFormat)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "audio format", "", err)
	}

	s.result.OutputPath = s.opts.OutputPath
	if strings.TrimSpace(s.result.OutputPath) == "" {
		s.result.OutputPath = DefaultOutputPath(video)
	}
	if s.opts.MaxChunks < 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "options", "max chunks must not be negative", nil)
	}
	if s.opts.ChunkSizeSeconds < 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "options", "chunk size must not be negative", nil)
	}

	s.identity, err = s.identify(video)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "pipeline", "identify video", "", err)
	}
	return nil
}

func (s *run) cleanup() {
	if s.workDir == "" {
		return
	}
	if s.opts.KeepTemp {
		s.logger.Info("keeping work directory", logging.String("path", s.workDir))
		return
	}
	if err := os.RemoveAll(s.workDir); err != nil {
		logging.WarnWithContext(s.logger, "work directory cleanup failed", "cleanup_failed",
			logging.String("path", s.workDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "temporary audio files remain on disk"),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
		)
	}
	s.result.WorkDir = ""
}

// segmentOptions converts the [segmenter] section, applying the per-run
// chunk size override.
func segmentOptions(cfg config.Segmenter, chunkSizeSeconds int) segment.Options {
	opts := segment.Options{
		Target:           time.Duration(cfg.TargetSeconds) * time.Second,
		MaxFactor:        cfg.MaxFactor,
		MinGap:           timecode.Seconds(cfg.MinGapSeconds),
		Padding:          timecode.Seconds(cfg.PaddingSeconds),
		MinChunkFraction: cfg.MinChunkFraction,
		PreferLaterGap:   cfg.PreferLaterGap,
	}
	if chunkSizeSeconds > 0 {
		opts.Target = time.Duration(chunkSizeSeconds) * time.Second
	}
	return opts
}

// DefaultOutputPath returns "<dir>/<base>.ja.srt" for a video path.
func DefaultOutputPath(video string) string {
	base := strings.TrimSuffix(video, filepath.Ext(video))
	return base + ".ja.srt"
}
