package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists conversation and user scopes in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	opts StoreOptions
	now  func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, opts StoreOptions) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, opts: opts.withDefaults(), now: time.Now}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS state (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			expires_at  INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL
		);
	`)
	return err
}

// Load reads the saved scopes for key, ignoring expired rows.
func (s *SQLiteStore) Load(ctx context.Context, key Key) (*State, error) {
	state := NewState()
	now := s.now().Unix()

	for _, e := range s.opts.entries(key) {
		var value string
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM state WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
			e.key, now).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", e.key, err)
		}
		vars, err := decodeScope([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.key, err)
		}
		state.ReplaceScope(e.scope, vars)
	}
	return state, nil
}

// Save upserts the durable scopes inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, key Key, state *State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	var expires int64
	if s.opts.TTL > 0 {
		expires = now.Add(s.opts.TTL).Unix()
	}

	for _, e := range s.opts.entries(key) {
		data, err := encodeScope(state.Scope(e.scope))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO state (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value,
				expires_at = excluded.expires_at, updated_at = excluded.updated_at
		`, e.key, string(data), expires, now.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", e.key, err)
		}
	}
	return tx.Commit()
}

// Delete removes the saved scopes for key.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	for _, e := range s.opts.entries(key) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, e.key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", e.key, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
