package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	DatabaseURL string
}

// Open builds the configured store. The returned func releases its resources.
// BackendNone yields a nil Store, which callers treat as always expired.
func Open(ctx context.Context, o Options) (Store, func() error, error) {
	noop := func() error { return nil }
	dir := o.Dir
	if dir == "" && o.Backend != BackendMemory && o.Backend != BackendPostgres && o.Backend != BackendNone {
		d, err := DefaultDir()
		if err != nil {
			return nil, noop, err
		}
		dir = d
	}

	switch o.Backend {
	case BackendNone:
		return nil, noop, nil
	case "", BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendFile:
		s, err := NewFileStore(dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendLevelDB:
		s, err := NewLevelDBStore(filepath.Join(dir, "leveldb"))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendPostgres:
		if o.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("postgres cache requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, o.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to connect to database: %w", err)
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, func() error { pool.Close(); return nil }, nil
	}
	return nil, noop, fmt.Errorf("unknown cache backend %q", o.Backend)
}
