package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if !strings.HasPrefix(c.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.Gemini.BaseURL, "https://") {
		return fmt.Errorf("gemini.base_url must be an http(s) URL, got %q", c.Gemini.BaseURL)
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		return errors.New("gemini.timeout_seconds must be positive")
	}
	if c.Gemini.MaxAttempts <= 0 {
		return errors.New("gemini.max_attempts must be positive")
	}
	if c.Gemini.InitialBackoffMS <= 0 {
		return errors.New("gemini.initial_backoff_ms must be positive")
	}
	if c.Gemini.MaxBackoffMS < c.Gemini.InitialBackoffMS {
		return errors.New("gemini.max_backoff_ms must be at least gemini.initial_backoff_ms")
	}
	if c.Gemini.MaxElapsedSeconds <= 0 {
		return errors.New("gemini.max_elapsed_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	s := c.Segmenter
	if s.TargetSeconds < 10 {
		return errors.New("segmenter.target_seconds must be at least 10")
	}
	if s.MaxFactor < 1 {
		return errors.New("segmenter.max_factor must be at least 1")
	}
	if s.MinGapSeconds < 0 {
		return errors.New("segmenter.min_gap_seconds must not be negative")
	}
	if s.PaddingSeconds < 0 {
		return errors.New("segmenter.padding_seconds must not be negative")
	}
	if s.MinChunkFraction <= 0 || s.MinChunkFraction > 1 {
		return errors.New("segmenter.min_chunk_fraction must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateValidation() error {
	v := c.Validation
	if v.MinCPS < 0 || v.MaxCPS <= v.MinCPS {
		return errors.New("validation.max_cps must exceed validation.min_cps, and min_cps must not be negative")
	}
	if v.MaxLineSeconds <= 0 {
		return errors.New("validation.max_line_seconds must be positive")
	}
	if v.BoundaryToleranceMS < 0 || v.OverlapToleranceMS < 0 {
		return errors.New("validation tolerances must not be negative")
	}
	if v.MinCoverageRatio < 0 || v.MinCoverageRatio >= 1 {
		return errors.New("validation.min_coverage_ratio must be in [0, 1)")
	}
	if v.MaxCoverageRatio < 1 {
		return errors.New("validation.max_coverage_ratio must be at least 1")
	}
	if v.MaxRepeats < 1 {
		return errors.New("validation.max_repeats must be at least 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxChunkAttempts < 1 {
		return errors.New("pipeline.max_chunk_attempts must be at least 1")
	}
	switch c.Pipeline.AudioFormat {
	case "flac", "mp3", "wav", "ogg":
	default:
		return fmt.Errorf("pipeline.audio_format: unsupported value %q (want flac, mp3, wav, or ogg)", c.Pipeline.AudioFormat)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
