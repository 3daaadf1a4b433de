// ABOUTME: SQLite implementation of TokenStore using modernc.org/sqlite
// ABOUTME: Lets issued tokens survive restarts when database.path is configured

package auth

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

// SQLiteTokenStore implements TokenStore on a SQLite database.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore opens (or creates) a SQLite token store at the given
// path. Parent directories are created if needed.
func NewSQLiteTokenStore(path string) (*SQLiteTokenStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteTokenStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTokenStore) createSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS issued_tokens (
		value      TEXT PRIMARY KEY,
		client_id  TEXT NOT NULL,
		scope      TEXT NOT NULL DEFAULT '',
		issued_at  INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_issued_tokens_expires_at
		ON issued_tokens(expires_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Put stores a token, replacing any existing entry with the same value.
func (s *SQLiteTokenStore) Put(ctx context.Context, token IssuedToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO issued_tokens (value, client_id, scope, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.Value, token.ClientID, token.Scope,
		token.IssuedAt.Unix(), token.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Get returns the token with the given value, or ErrTokenNotFound.
func (s *SQLiteTokenStore) Get(ctx context.Context, value string) (*IssuedToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, client_id, scope, issued_at, expires_at
		 FROM issued_tokens WHERE value = ?`, value)

	var token IssuedToken
	var issuedAt, expiresAt int64
	err := row.Scan(&token.Value, &token.ClientID, &token.Scope, &issuedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	token.IssuedAt = time.Unix(issuedAt, 0).UTC()
	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &token, nil
}

// Delete removes a token. Deleting an absent token is not an error.
func (s *SQLiteTokenStore) Delete(ctx context.Context, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM issued_tokens WHERE value = ?`, value); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Sweep removes all tokens expired at the given instant.
func (s *SQLiteTokenStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM issued_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sweeping tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept tokens: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}
