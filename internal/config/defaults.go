package config

const (
	defaultCacheDirFallback     = "~/.cache/jimaku"
	defaultWorkDir              = "~/.local/share/jimaku/work"
	defaultLogDir               = "~/.local/share/jimaku/logs"
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiTimeout        = 300
	defaultGeminiMaxAttempts    = 5
	defaultGeminiInitialBackoff = 2000
	defaultGeminiMaxBackoff     = 60000
	defaultGeminiMaxElapsed     = 600
	defaultTargetSeconds        = 60
	defaultMaxFactor            = 1.5
	defaultMinGapSeconds        = 2.0
	defaultPaddingSeconds       = 0.5
	defaultMinChunkFraction     = 0.5
	defaultMaxCPS               = 25.0
	defaultMinCPS               = 0.2
	defaultMaxLineSeconds       = 10.0
	defaultBoundaryToleranceMS  = 1000
	defaultOverlapToleranceMS   = 250
	defaultMinCoverageRatio     = 0.25
	defaultMaxCoverageRatio     = 1.05
	defaultMaxRepeats           = 3
	defaultMaxChunkAttempts     = 3
	defaultAudioFormat          = "flac"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
		},
		Gemini: Gemini{
			BaseURL:           defaultGeminiBaseURL,
			Model:             defaultGeminiModel,
			TimeoutSeconds:    defaultGeminiTimeout,
			MaxAttempts:       defaultGeminiMaxAttempts,
			InitialBackoffMS:  defaultGeminiInitialBackoff,
			MaxBackoffMS:      defaultGeminiMaxBackoff,
			MaxElapsedSeconds: defaultGeminiMaxElapsed,
		},
		Segmenter: Segmenter{
			TargetSeconds:    defaultTargetSeconds,
			MaxFactor:        defaultMaxFactor,
			MinGapSeconds:    defaultMinGapSeconds,
			PaddingSeconds:   defaultPaddingSeconds,
			MinChunkFraction: defaultMinChunkFraction,
			PreferLaterGap:   true,
		},
		Validation: Validation{
			MaxCPS:              defaultMaxCPS,
			MinCPS:              defaultMinCPS,
			MaxLineSeconds:      defaultMaxLineSeconds,
			BoundaryToleranceMS: defaultBoundaryToleranceMS,
			OverlapToleranceMS:  defaultOverlapToleranceMS,
			MinCoverageRatio:    defaultMinCoverageRatio,
			MaxCoverageRatio:    defaultMaxCoverageRatio,
			MaxRepeats:          defaultMaxRepeats,
		},
		Pipeline: Pipeline{
			MaxChunkAttempts: defaultMaxChunkAttempts,
			AudioFormat:      defaultAudioFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
