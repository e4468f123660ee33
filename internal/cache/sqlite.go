// Package cache persists registry lookups in SQLite so repeated DOIs do not
// hit the network.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
	_ "modernc.org/sqlite"
)

// MemoryPath keeps the cache for the lifetime of the process only.
const MemoryPath = ":memory:"

// Store is a SQLite-backed lookup cache keyed by normalized DOI.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires entries older than d. Zero keeps entries forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// Open opens or creates a cache database at path. An empty path opens an
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	// One connection: SQLite serializes writers, and each :memory:
	// connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS lookups (
			doi_key TEXT PRIMARY KEY,
			doi TEXT NOT NULL,
			source TEXT,
			payload TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached publication for d. The boolean reports a hit.
func (s *Store) Get(ctx context.Context, d doi.DOI) (*reference.Publication, bool, error) {
	var payload string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM lookups WHERE doi_key = ?`, d.Key(),
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry for %s: %w", d, err)
	}

	if s.ttl > 0 && s.now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, false, nil
	}

	var pub reference.Publication
	if err := json.Unmarshal([]byte(payload), &pub); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry for %s: %w", d, err)
	}
	return &pub, true, nil
}

// Put stores pub under d, replacing any previous entry.
func (s *Store) Put(ctx context.Context, d doi.DOI, pub *reference.Publication) error {
	if pub == nil {
		return fmt.Errorf("caching %s: nil publication", d)
	}

	payload, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("encoding cache entry for %s: %w", d, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lookups (doi_key, doi, source, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doi_key) DO UPDATE SET
			doi = excluded.doi,
			source = excluded.source,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`,
		d.Key(), d.String(), pub.Source, string(payload), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry for %s: %w", d, err)
	}
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Purge deletes every entry and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookups`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
