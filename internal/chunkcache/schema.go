package chunkcache

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it whenever
// schema.sql or the cached payload changes shape; older databases are
// refused rather than migrated since the cache can always be rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch reports a cache database written by another version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		// Fresh file. DDL and the version bump commit together.
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	default:
		return fmt.Errorf("%w: %s has version %d, expected %d (run `jimaku cache clear` to rebuild it)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}
