package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	scopeLocal   = "local"
	scopeSession = "session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    scope      TEXT    NOT NULL,
    key        TEXT    NOT NULL,
    value      TEXT    NOT NULL,
    expires_at INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (scope, key)
)`

// SQLite is the client-side state database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the state database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Local returns a store whose values persist until removed.
func (s *SQLite) Local() *SQLiteKV {
	return &SQLiteKV{db: s.db, scope: scopeLocal, now: time.Now}
}

// Session returns a store whose values expire ttl after being written.
func (s *SQLite) Session(ttl time.Duration) *SQLiteKV {
	return &SQLiteKV{db: s.db, scope: scopeSession, ttl: ttl, now: time.Now}
}

// SQLiteKV is a scoped key-value view of the state database.
type SQLiteKV struct {
	db    *sql.DB
	scope string
	ttl   time.Duration
	now   func() time.Time
}

// Get returns the value for key and whether it exists.
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ? AND (expires_at = 0 OR expires_at > ?)`,
		s.scope, key, s.now().UnixNano(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	var expires int64
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (scope, key, value, expires_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		s.scope, key, value, expires,
	)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Take reads and deletes key in one statement. Expired rows are deleted but not returned.
func (s *SQLiteKV) Take(ctx context.Context, key string) (string, bool, error) {
	var (
		value   string
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM kv WHERE scope = ? AND key = ? RETURNING value, expires_at`,
		s.scope, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite take: %w", err)
	}
	if expires != 0 && expires <= s.now().UnixNano() {
		return "", false, nil
	}
	return value, true, nil
}
