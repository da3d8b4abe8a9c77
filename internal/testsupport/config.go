package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"jimaku/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGeminiKey sets the Gemini API key on the test config.
func WithGeminiKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.APIKey = key
	}
}

// WithGeminiURL points the backend at a test server.
func WithGeminiURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.BaseURL = url
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, ffmpeg and ffprobe are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			StubBinary(b.t, filepath.Join(b.baseDir, "bin"), name, "exit 0\n")
		}
	}
}

// StubBinary writes a shell script named name into dir with the given body
// and prepends dir to PATH for the rest of the test.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	path := os.Getenv("PATH")
	if !hasPathEntry(path, dir) {
		t.Setenv("PATH", dir+string(os.PathListSeparator)+path)
	}
	return target
}

func hasPathEntry(pathList, dir string) bool {
	for _, entry := range filepath.SplitList(pathList) {
		if entry == dir {
			return true
		}
	}
	return false
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
