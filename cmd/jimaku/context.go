package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"jimaku/internal/chunkcache"
	"jimaku/internal/config"
	"jimaku/internal/deps"
	"jimaku/internal/logging"
	"jimaku/internal/media/ffmpeg"
	"jimaku/internal/services/gemini"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// logger builds the run logger, honouring --log-level over the config file.
func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	effective := *cfg
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			effective.Logging.Level = level
		}
	}
	logger, err := logging.NewFromConfig(&effective)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) openCache(cfg *config.Config, logger *slog.Logger) (*chunkcache.Store, error) {
	store, err := chunkcache.Open(cfg.CacheDatabasePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open chunk cache: %w", err)
	}
	return store, nil
}

func mediaTool(cfg *config.Config) *ffmpeg.Tool {
	return ffmpeg.New(cfg.FFmpegBinary(), deps.ResolveFFprobePath(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

func geminiClient(cfg *config.Config, logger *slog.Logger) *gemini.Client {
	return gemini.NewClient(gemini.FromSettings(cfg.Gemini), gemini.WithLogger(logger))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
