// Package plugins names the API integrations the CLI can query. Each plugin
// fetches through a dispatch coordinator and renders a text summary.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownPlugin is returned by Lookup for unregistered names.
var ErrUnknownPlugin = errors.New("unknown plugin")

// ErrUnsupported is returned by plugins that cannot fetch a single item by ID.
var ErrUnsupported = errors.New("not supported by this plugin")

type Plugin interface {
	// Name returns the name of the plugin (e.g., "strava", "hevy")
	Name() string

	// GetLatest renders the most recent item.
	GetLatest(ctx context.Context) (string, error)

	// Get renders the item with the given ID.
	Get(ctx context.Context, id string) (string, error)
}

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds p, replacing any plugin with the same name.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

func (r *Registry) Lookup(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	return p, nil
}

// List returns registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
