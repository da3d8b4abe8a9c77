package chunkcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"jimaku/internal/logging"
	"jimaku/internal/timecode"
)

// Line is one accepted transcript line, relative to the chunk start.
type Line struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type storedLine struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Entry is one cached chunk result.
type Entry struct {
	Key        string
	Video      string
	ChunkIndex int
	Span       timecode.Span
	Model      string
	Lines      []Line
	CreatedAt  time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Path      string
	Entries   int
	Videos    int
	Lines     int
	SizeBytes int64
	Oldest    time.Time
	Newest    time.Time
}

func encodeLines(lines []Line) (string, error) {
	stored := make([]storedLine, 0, len(lines))
	for _, l := range lines {
		stored = append(stored, storedLine{
			StartMS: l.Start.Milliseconds(),
			EndMS:   l.End.Milliseconds(),
			Text:    l.Text,
		})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode lines: %w", err)
	}
	return string(data), nil
}

func decodeLines(raw string) ([]Line, error) {
	var stored []storedLine
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	lines := make([]Line, 0, len(stored))
	for _, s := range stored {
		lines = append(lines, Line{
			Start: time.Duration(s.StartMS) * time.Millisecond,
			End:   time.Duration(s.EndMS) * time.Millisecond,
			Text:  s.Text,
		})
	}
	return lines, nil
}

const entryColumns = `fingerprint, video, chunk_index, start_ms, end_ms, model, lines_json, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry          Entry
		startMS, endMS int64
		linesJSON      string
		createdAt      string
	)
	if err := row.Scan(&entry.Key, &entry.Video, &entry.ChunkIndex, &startMS, &endMS, &entry.Model, &linesJSON, &createdAt); err != nil {
		return Entry{}, err
	}
	entry.Span = timecode.Span{
		Start: time.Duration(startMS) * time.Millisecond,
		End:   time.Duration(endMS) * time.Millisecond,
	}
	lines, err := decodeLines(linesJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", entry.Key, err)
	}
	entry.Lines = lines
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}

// Lookup returns the entry stored under key.
func (s *Store) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false, nil
	}
	var (
		entry Entry
		found bool
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM chunk_results WHERE fingerprint = ?`, key)
		var scanErr error
		entry, scanErr = scanEntry(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = scanErr == nil
		return scanErr
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup chunk %s: %w", key, err)
	}
	return entry, found, nil
}

// Store commits entry in its own transaction. Writing the same key twice
// replaces the row; fingerprints cover every input, so the content is the
// same.
func (s *Store) Store(ctx context.Context, entry Entry) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return errors.New("cache key cannot be empty")
	}
	linesJSON, err := encodeLines(entry.Lines)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunk_results (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.Key,
			entry.Video,
			entry.ChunkIndex,
			entry.Span.Start.Milliseconds(),
			entry.Span.End.Milliseconds(),
			entry.Model,
			linesJSON,
			entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("store chunk %d: %w", entry.ChunkIndex, err)
	}

	s.logger.Debug("cached chunk result",
		logging.Chunk(entry.ChunkIndex),
		logging.String("video", entry.Video),
		logging.String("model", entry.Model),
		logging.Int("line_count", len(entry.Lines)))
	return nil
}

// List returns entries ordered by video and chunk index. A non-empty video
// restricts the listing to entries for that video.
func (s *Store) List(ctx context.Context, video string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM chunk_results`
	var args []any
	if video = strings.TrimSpace(video); video != "" {
		query += ` WHERE video = ?`
		args = append(args, video)
	}
	query += ` ORDER BY video, chunk_index, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chunk cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats reports aggregate counts and the database file size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path}
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT video), MIN(created_at), MAX(created_at) FROM chunk_results`,
	).Scan(&stats.Entries, &stats.Videos, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("chunk cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(time.RFC3339Nano, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(time.RFC3339Nano, newest.String)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lines_json FROM chunk_results`)
	if err != nil {
		return Stats{}, fmt.Errorf("chunk cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Stats{}, err
		}
		lines, err := decodeLines(raw)
		if err != nil {
			continue
		}
		stats.Lines += len(lines)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Clear removes entries and returns how many were deleted. A non-empty video
// restricts the removal to that video.
func (s *Store) Clear(ctx context.Context, video string) (int64, error) {
	query := `DELETE FROM chunk_results`
	var args []any
	if video = strings.TrimSpace(video); video != "" {
		query += ` WHERE video = ?`
		args = append(args, video)
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear chunk cache: %w", err)
	}
	s.logger.Debug("cleared chunk cache",
		logging.String("video", video),
		logging.Int64("removed", removed))
	return removed, nil
}
