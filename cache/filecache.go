package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
)

// FileStore implements Store using one JSON file per entry.
type FileStore struct {
	dir string
}

// DefaultDir returns the cache directory used when none is configured.
func DefaultDir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, ".requestkit_cache"), nil
}

// NewFileStore creates a file-based store in dir.
// If dir is empty, uses DefaultDir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Read implements Reader interface
func (fc *FileStore) Read(_ context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(fc.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &entry, nil
}

func (fc *FileStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	e, err := fc.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(e)
}

// Write implements Writer interface
func (fc *FileStore) Write(_ context.Context, key string, entry *Entry) error {
	path := fc.path(key)
	cp := *entry
	stamp(&cp)

	data, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

func (fc *FileStore) Purge(_ context.Context, key string) error {
	err := os.Remove(fc.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (fc *FileStore) IsExpired(ctx context.Context, key string) (bool, error) {
	return probe(fc.Read(ctx, key))
}

// GetETag implements ETagger interface
func (fc *FileStore) GetETag(ctx context.Context, key string) string {
	entry, err := fc.Read(ctx, key)
	if err != nil {
		return ""
	}
	return entry.ETag
}

// Dir returns the directory entries are stored in.
func (fc *FileStore) Dir() string { return fc.dir }

func (fc *FileStore) path(key string) string {
	return filepath.Join(fc.dir, FileName(key))
}
