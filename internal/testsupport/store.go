package testsupport

import (
	"testing"

	"jimaku/internal/chunkcache"
	"jimaku/internal/config"
)

// MustOpenCache opens the chunk cache for cfg and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *chunkcache.Store {
	t.Helper()

	store, err := chunkcache.Open(cfg.CacheDatabasePath(), nil)
	if err != nil {
		t.Fatalf("open chunk cache: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
