package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)

	sq, err := NewSQLiteStore(ctx, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	ldb, err := NewLevelDBStore(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ldb.Close() })

	out := map[string]Store{
		"memory":  NewMemoryStore(),
		"file":    fs,
		"sqlite":  sq,
		"leveldb": ldb,
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		pg, err := NewPostgresStore(ctx, pool)
		require.NoError(t, err)
		out["postgres"] = pg
	}
	return out
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

func TestStores(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	freezeClock(t, base)
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := "https://api.example.com/users/7 | " + name

			t.Run("missing", func(t *testing.T) {
				_, err := s.Read(ctx, key)
				assert.ErrorIs(t, err, ErrCacheNotFound)

				expired, err := s.IsExpired(ctx, key)
				assert.True(t, expired)
				assert.ErrorIs(t, err, ErrCacheNotFound)
				assert.Empty(t, s.GetETag(ctx, key))
			})

			t.Run("timed", func(t *testing.T) {
				require.NoError(t, s.Write(ctx, key, &Entry{
					ETag:      `"v1"`,
					ExpiresAt: base.Add(time.Hour),
					Body:      []byte(`{"id":7,"name":"ada"}`),
				}))

				e, err := s.Read(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, `"v1"`, e.ETag)
				assert.JSONEq(t, `{"id":7,"name":"ada"}`, string(e.Body))
				assert.True(t, e.FetchedAt.Equal(base))
				assert.Equal(t, `"v1"`, s.GetETag(ctx, key))

				expired, err := s.IsExpired(ctx, key)
				require.NoError(t, err)
				assert.False(t, expired)

				freezeClock(t, base.Add(2*time.Hour))
				expired, err = s.IsExpired(ctx, key)
				require.NoError(t, err)
				assert.True(t, expired)
				freezeClock(t, base)
			})

			t.Run("forever", func(t *testing.T) {
				require.NoError(t, s.Write(ctx, key, &Entry{Body: []byte(`{"id":7}`)}))
				freezeClock(t, base.AddDate(10, 0, 0))
				expired, err := s.IsExpired(ctx, key)
				require.NoError(t, err)
				assert.False(t, expired)
				freezeClock(t, base)
			})

			t.Run("snapshot", func(t *testing.T) {
				m, err := s.Snapshot(ctx, key)
				require.NoError(t, err)
				assert.EqualValues(t, 7, m["id"])
			})

			t.Run("purge", func(t *testing.T) {
				require.NoError(t, s.Purge(ctx, key))
				_, err := s.Read(ctx, key)
				assert.ErrorIs(t, err, ErrCacheNotFound)
				require.NoError(t, s.Purge(ctx, key))
			})
		})
	}
}

func TestMemoryStoreKeepsValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	type user struct {
		ID int `json:"id"`
	}
	require.NoError(t, s.Write(ctx, "k", &Entry{Value: user{ID: 3}}))

	e, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, user{ID: 3}, e.Value)

	m, err := s.Snapshot(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 3, m["id"])
	assert.Equal(t, 1, s.Len())
}

func TestFileStoreLongKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	long := "https://api.example.com/" + string(make([]byte, 300))
	require.NoError(t, s.Write(ctx, long, &Entry{Body: []byte(`{}`)}))
	_, err = s.Read(ctx, long)
	require.NoError(t, err)

	names, err := filepath.Glob(filepath.Join(s.Dir(), "hash_*.json"))
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestFileStoreCorruptEntry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), FileName("k")), []byte("{"), 0o600))

	_, err = s.Read(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheNotFound)

	expired, err := s.IsExpired(ctx, "k")
	assert.True(t, expired)
	assert.Error(t, err)
}

func TestSQLitePurgeExpired(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	freezeClock(t, base)
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(ctx, "stale", &Entry{ExpiresAt: base.Add(-time.Minute)}))
	require.NoError(t, s.Write(ctx, "fresh", &Entry{ExpiresAt: base.Add(time.Minute)}))
	require.NoError(t, s.Write(ctx, "forever", &Entry{}))

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLevelDBKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(ctx, "a", &Entry{}))
	require.NoError(t, s.Write(ctx, "b", &Entry{}))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendMemory, BackendFile, BackendSQLite, BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			s, closeFn, err := Open(ctx, Options{Backend: backend, Dir: t.TempDir()})
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.NoError(t, closeFn())
		})
	}

	s, _, err := Open(ctx, Options{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, _, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)

	_, _, err = Open(ctx, Options{Backend: BackendPostgres})
	assert.Error(t, err)
}
