package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process, including their decoded values.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*Entry{}}
}

func (m *MemoryStore) Read(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	e, err := m.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(e)
}

func (m *MemoryStore) Write(_ context.Context, key string, entry *Entry) error {
	cp := *entry
	stamp(&cp)
	m.mu.Lock()
	m.entries[key] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Purge(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) IsExpired(ctx context.Context, key string) (bool, error) {
	return probe(m.Read(ctx, key))
}

func (m *MemoryStore) GetETag(ctx context.Context, key string) string {
	e, err := m.Read(ctx, key)
	if err != nil {
		return ""
	}
	return e.ETag
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
