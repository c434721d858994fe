// Package cache persists classification decisions in sqlite so a re-run
// over the same images skips paid agent calls and stays idempotent.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nvandessel/cocofix/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	fingerprint TEXT NOT NULL,
	model       TEXT NOT NULL,
	label       TEXT NOT NULL,
	none_match  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (fingerprint, model)
);
`

// Store is a sqlite-backed decision cache keyed by region fingerprint and
// model identifier.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the decision cache at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	// Single writer; the workflow is sequential.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get looks up a cached decision. The second return value is false on a
// miss.
func (s *Store) Get(ctx context.Context, fingerprint, model string) (models.Decision, bool, error) {
	var (
		label     string
		noneMatch int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT label, none_match FROM decisions WHERE fingerprint = ? AND model = ?`,
		fingerprint, model,
	).Scan(&label, &noneMatch)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Decision{}, false, nil
	}
	if err != nil {
		return models.Decision{}, false, fmt.Errorf("cache lookup: %w", err)
	}
	return models.Decision{
		Label:     label,
		NoneMatch: noneMatch != 0,
		Source:    models.SourceCache,
	}, true, nil
}

// Put stores a decision, replacing any previous entry for the same
// fingerprint and model.
func (s *Store) Put(ctx context.Context, fingerprint, model string, dec models.Decision) error {
	noneMatch := 0
	if dec.NoneMatch {
		noneMatch = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO decisions (fingerprint, model, label, none_match, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fingerprint, model, dec.Label, noneMatch, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	return nil
}

// Len returns the number of cached decisions.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
