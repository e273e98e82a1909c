// Package sourcestore persists source map snapshots in SQLite so tooling can
// attribute runtime errors to block sources after the process that
// built them has gone.
package sourcestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agentic-research/blocklink/internal/manifest"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a block key has no stored source.
var ErrNotFound = errors.New("source entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	key     TEXT PRIMARY KEY,
	path    TEXT NOT NULL,
	content TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
) WITHOUT ROWID;
`

// Store is a SQLite-backed source map.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with sm in one transaction. Readers see
// either the old snapshot or the new one.
func (s *Store) Save(ctx context.Context, sm manifest.SourceMap) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sources`); err != nil {
		return fmt.Errorf("clear sources: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sources (key, path, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	keys := make([]string, 0, len(sm))
	for k := range sm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := sm[k]
		if _, err = stmt.ExecContext(ctx, k, e.Path, e.Content); err != nil {
			return fmt.Errorf("insert %s: %w", k, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (name, value) VALUES ('saved_at', ?)`,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Lookup returns the stored entry for key.
func (s *Store) Lookup(ctx context.Context, key string) (manifest.SourceEntry, error) {
	var e manifest.SourceEntry
	err := s.db.QueryRowContext(ctx, `SELECT path, content FROM sources WHERE key = ?`, key).Scan(&e.Path, &e.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return manifest.SourceEntry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return manifest.SourceEntry{}, fmt.Errorf("lookup %s: %w", key, err)
	}
	return e, nil
}

// Keys returns stored keys starting with prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM sources WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return keys, nil
}

// Load reads the whole stored snapshot.
func (s *Store) Load(ctx context.Context) (manifest.SourceMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, path, content FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	sm := manifest.SourceMap{}
	for rows.Next() {
		var k string
		var e manifest.SourceEntry
		if err := rows.Scan(&k, &e.Path, &e.Content); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sm[k] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return sm, nil
}

// SavedAt reports when the current snapshot was written.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'saved_at'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read meta: %w", err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}
