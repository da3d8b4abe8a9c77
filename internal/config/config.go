package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
}

// Gemini contains connection and retry settings for the transcription backend.
type Gemini struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	InitialBackoffMS  int    `toml:"initial_backoff_ms"`
	MaxBackoffMS      int    `toml:"max_backoff_ms"`
	MaxElapsedSeconds int    `toml:"max_elapsed_seconds"`
}

// Segmenter contains the chunking parameters.
type Segmenter struct {
	// TargetSeconds is the preferred chunk length.
	TargetSeconds int `toml:"target_seconds"`
	// MaxFactor bounds chunk length at TargetSeconds*MaxFactor before a
	// forced cut is taken.
	MaxFactor float64 `toml:"max_factor"`
	// MinGapSeconds is the shortest silence that counts as a preferred cut point.
	MinGapSeconds float64 `toml:"min_gap_seconds"`
	// PaddingSeconds is how far past the last included line a cut may land.
	PaddingSeconds float64 `toml:"padding_seconds"`
	// MinChunkFraction is the shortest preferred chunk as a fraction of the target.
	MinChunkFraction float64 `toml:"min_chunk_fraction"`
	// PreferLaterGap breaks ties between equal gaps in favour of the later one.
	PreferLaterGap bool `toml:"prefer_later_gap"`
}

// Validation contains the thresholds used to accept or reject backend output.
type Validation struct {
	MaxCPS              float64 `toml:"max_cps"`
	MinCPS              float64 `toml:"min_cps"`
	MaxLineSeconds      float64 `toml:"max_line_seconds"`
	BoundaryToleranceMS int     `toml:"boundary_tolerance_ms"`
	OverlapToleranceMS  int     `toml:"overlap_tolerance_ms"`
	MinCoverageRatio    float64 `toml:"min_coverage_ratio"`
	MaxCoverageRatio    float64 `toml:"max_coverage_ratio"`
	MaxRepeats          int     `toml:"max_repeats"`
}

// Pipeline contains orchestration settings.
type Pipeline struct {
	MaxChunkAttempts       int    `toml:"max_chunk_attempts"`
	TranscribeSilentChunks bool   `toml:"transcribe_silent_chunks"`
	AudioFormat            string `toml:"audio_format"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jimaku.
//
// Configuration sections by subsystem:
//   - Paths: cache, scratch, and log directories
//   - Gemini: backend connection and retry policy
//   - Segmenter: chunk sizing and cut-point selection
//   - Validation: thresholds for accepting transcriptions
//   - Pipeline: per-chunk attempt bound and audio format
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Gemini     Gemini     `toml:"gemini"`
	Segmenter  Segmenter  `toml:"segmenter"`
	Validation Validation `toml:"validation"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jimaku/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jimaku.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, work, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for stream inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for demuxing and slicing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// CacheDatabasePath returns the location of the chunk cache database.
func (c *Config) CacheDatabasePath() string {
	return filepath.Join(c.Paths.CacheDir, "chunks.db")
}

// LogFilePath returns the JSON log file written alongside console output.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "jimaku.log")
}

// RequireGeminiKey reports a configuration error when no API key is available.
// Commands that never reach the backend skip this check.
func (c *Config) RequireGeminiKey() error {
	if strings.TrimSpace(c.Gemini.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/jimaku/config.toml"
	}
	return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'jimaku config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "jimaku")
	}
	return defaultCacheDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
