// Package cache stores response entries keyed by request identity, with
// expiry and ETag metadata.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheNotFound is returned when a cache entry does not exist.
	ErrCacheNotFound = errors.New("cache entry not found")
	// ErrNoSnapshot is returned when an entry body is not a JSON object.
	ErrNoSnapshot = errors.New("cache entry has no key/value snapshot")
)

// Entry represents a cached response with metadata.
type Entry struct {
	ETag      string    `json:"etag,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	// ExpiresAt is the instant the entry goes stale. Zero means never.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Body      []byte    `json:"body"`
	// Value is the decoded response. Only in-process stores keep it.
	Value any `json:"-"`
}

// Expired reports whether the entry is stale at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Reader defines the interface for reading cache entries.
type Reader interface {
	// Read returns the entry whether or not it is expired.
	Read(ctx context.Context, key string) (*Entry, error)
	// Snapshot returns the entry body as a generic key/value mapping.
	Snapshot(ctx context.Context, key string) (map[string]any, error)
}

// Writer defines the interface for writing cache entries.
type Writer interface {
	// Write stores entry under key, replacing any previous entry.
	Write(ctx context.Context, key string, entry *Entry) error
	Purge(ctx context.Context, key string) error
}

// Prober answers freshness questions without loading the body.
type Prober interface {
	// IsExpired reports whether the entry is stale. A missing entry is
	// reported as expired together with ErrCacheNotFound.
	IsExpired(ctx context.Context, key string) (bool, error)
}

// ETagger provides ETag support for conditional requests.
type ETagger interface {
	// GetETag returns the ETag for a given key, empty string if not found.
	GetETag(ctx context.Context, key string) string
}

// Store is the main interface that combines all cache operations.
type Store interface {
	Reader
	Writer
	Prober
	ETagger
}

var now = time.Now

func probe(e *Entry, err error) (bool, error) {
	if err != nil {
		return true, err
	}
	return e.Expired(now()), nil
}

func stamp(entry *Entry) {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = now()
	}
}
