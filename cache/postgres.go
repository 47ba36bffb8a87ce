package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	etag       TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	body       BYTEA
)`

// PostgresStore implements Store on a shared Postgres table, so that several
// processes can reuse each other's responses.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool and creates the table if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Read(ctx context.Context, key string) (*Entry, error) {
	var (
		e       Entry
		fetched pgtype.Timestamptz
		expires pgtype.Timestamptz
	)
	err := p.pool.QueryRow(ctx,
		"SELECT etag, fetched_at, expires_at, body FROM cache_entries WHERE key = $1", key).
		Scan(&e.ETag, &fetched, &expires, &e.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	e.FetchedAt = fetched.Time
	if expires.Valid {
		e.ExpiresAt = expires.Time
	}
	return &e, nil
}

func (p *PostgresStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	e, err := p.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(e)
}

func (p *PostgresStore) Write(ctx context.Context, key string, entry *Entry) error {
	cp := *entry
	stamp(&cp)
	_, err := p.pool.Exec(ctx, `INSERT INTO cache_entries (key, etag, fetched_at, expires_at, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			etag = EXCLUDED.etag,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at,
			body = EXCLUDED.body`,
		key,
		cp.ETag,
		pgtype.Timestamptz{Time: cp.FetchedAt, Valid: true},
		pgtype.Timestamptz{Time: cp.ExpiresAt, Valid: !cp.ExpiresAt.IsZero()},
		cp.Body,
	)
	return err
}

func (p *PostgresStore) Purge(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM cache_entries WHERE key = $1", key)
	return err
}

func (p *PostgresStore) IsExpired(ctx context.Context, key string) (bool, error) {
	var expires pgtype.Timestamptz
	err := p.pool.QueryRow(ctx,
		"SELECT expires_at FROM cache_entries WHERE key = $1", key).Scan(&expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, ErrCacheNotFound
	}
	if err != nil {
		return true, err
	}
	return expires.Valid && !now().Before(expires.Time), nil
}

func (p *PostgresStore) GetETag(ctx context.Context, key string) string {
	var etag string
	if err := p.pool.QueryRow(ctx,
		"SELECT etag FROM cache_entries WHERE key = $1", key).Scan(&etag); err != nil {
		return ""
	}
	return etag
}
