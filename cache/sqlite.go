package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at filename.
// If filename is empty, a new in-memory db is opened.
func NewSQLiteStore(ctx context.Context, filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			etag TEXT NOT NULL DEFAULT '',
			fetched_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			body BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS cache_entries_expires_idx ON cache_entries (expires_at)",
		"PRAGMA journal_mode=WAL",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Read(ctx context.Context, key string) (*Entry, error) {
	var (
		e       Entry
		fetched int64
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT etag, fetched_at, expires_at, body FROM cache_entries WHERE key = ?", key).
		Scan(&e.ETag, &fetched, &expires, &e.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	e.FetchedAt = time.Unix(0, fetched)
	if expires > 0 {
		e.ExpiresAt = time.Unix(0, expires)
	}
	return &e, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	e, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(e)
}

func (s *SQLiteStore) Write(ctx context.Context, key string, entry *Entry) error {
	cp := *entry
	stamp(&cp)
	var expires int64
	if !cp.ExpiresAt.IsZero() {
		expires = cp.ExpiresAt.UnixNano()
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO cache_entries
		(key, etag, fetched_at, expires_at, body) VALUES (?, ?, ?, ?, ?)`,
		key, cp.ETag, cp.FetchedAt.UnixNano(), expires, cp.Body)
	return err
}

func (s *SQLiteStore) Purge(ctx context.Context, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// IsExpired only reads the expiry column.
func (s *SQLiteStore) IsExpired(ctx context.Context, key string) (bool, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx,
		"SELECT expires_at FROM cache_entries WHERE key = ?", key).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return true, ErrCacheNotFound
	}
	if err != nil {
		return true, err
	}
	return expires > 0 && now().UnixNano() >= expires, nil
}

func (s *SQLiteStore) GetETag(ctx context.Context, key string) string {
	var etag string
	if err := s.db.QueryRowContext(ctx,
		"SELECT etag FROM cache_entries WHERE key = ?", key).Scan(&etag); err != nil {
		return ""
	}
	return etag
}

// PurgeExpired deletes every stale entry and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?", now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
