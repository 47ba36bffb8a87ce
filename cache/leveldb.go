package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelPrefix = "e:"

// LevelDBStore implements Store on an embedded LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Close() error { return l.db.Close() }

func (l *LevelDBStore) Read(_ context.Context, key string) (*Entry, error) {
	b, err := l.db.Get([]byte(levelPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &e, nil
}

func (l *LevelDBStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	e, err := l.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(e)
}

func (l *LevelDBStore) Write(_ context.Context, key string, entry *Entry) error {
	cp := *entry
	stamp(&cp)
	b, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	return l.db.Put([]byte(levelPrefix+key), b, nil)
}

func (l *LevelDBStore) Purge(_ context.Context, key string) error {
	return l.db.Delete([]byte(levelPrefix+key), nil)
}

func (l *LevelDBStore) IsExpired(ctx context.Context, key string) (bool, error) {
	return probe(l.Read(ctx, key))
}

func (l *LevelDBStore) GetETag(ctx context.Context, key string) string {
	e, err := l.Read(ctx, key)
	if err != nil {
		return ""
	}
	return e.ETag
}

// Keys lists stored keys.
func (l *LevelDBStore) Keys() ([]string, error) {
	it := l.db.NewIterator(util.BytesPrefix([]byte(levelPrefix)), nil)
	defer it.Release()

	var out []string
	for it.Next() {
		out = append(out, string(it.Key()[len(levelPrefix):]))
	}
	return out, it.Error()
}
