// Package dispatch decides, per request, whether a cached response can be
// served, whether a transport task must run, and fans results out to every
// caller interested in the same request identity.
package dispatch

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
	"github.com/rs/zerolog"
)

// Coordinator deduplicates transport work by identity and consults the
// store for freshness. It is safe for concurrent use.
type Coordinator struct {
	engine   transport.Engine
	store    cache.Store
	gen      *request.Generator
	log      zerolog.Logger
	registry *Registry

	mu       sync.Mutex
	inflight map[string]*call
}

// call is one in-flight transport task shared by every caller of an identity.
type call struct {
	identity string
	done     chan struct{}
	res      transport.Result

	mu     sync.Mutex
	onData []func([]byte)
}

func (cl *call) addDataListener(fn func([]byte)) {
	if fn == nil {
		return
	}
	cl.mu.Lock()
	cl.onData = append(cl.onData, fn)
	cl.mu.Unlock()
}

func (cl *call) data(chunk []byte) {
	cl.mu.Lock()
	fns := slices.Clone(cl.onData)
	cl.mu.Unlock()
	for _, fn := range fns {
		fn(chunk)
	}
}

// New builds a coordinator. A nil store disables caching: every entry is
// treated as expired and nothing is served from cache.
func New(engine transport.Engine, store cache.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		engine:   engine,
		store:    store,
		log:      zerolog.Nop(),
		inflight: map[string]*call{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.gen == nil {
		c.gen = request.NewGenerator(c.log)
	}
	c.registry = NewRegistry(c.log)
	return c
}

// Registry returns the observer registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Generator returns the identity generator.
func (c *Coordinator) Generator() *request.Generator { return c.gen }

// InFlight reports whether a transport task is outstanding for identity.
func (c *Coordinator) InFlight(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[identity]
	return ok
}

// Cancel stops delivery to the observer behind token. The transport task,
// if any, keeps running.
func (c *Coordinator) Cancel(token Token) bool {
	return c.registry.Cancel(token)
}

// expired probes the store. Untracked expiries are always stale, and probe
// failures count as expired.
func (c *Coordinator) expired(ctx context.Context, identity string, expiry request.Expiry) bool {
	if !expiry.Tracked() || c.store == nil {
		return true
	}
	exp, err := c.store.IsExpired(ctx, identity)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) {
			c.log.Warn().Err(err).Str("identity", identity).Msg("cache probe failed, treating as expired")
		}
		return true
	}
	return exp
}

// dispatch returns the in-flight call for the task's identity, submitting
// the task only when none exists. register, when set, runs under the
// coordinator lock, so the registration sees the result of the call it joins.
func (c *Coordinator) dispatch(task transport.Task, policy queue.Policy, onData func([]byte), register func()) *call {
	c.mu.Lock()
	if register != nil {
		register()
	}
	if cl, ok := c.inflight[task.Identity]; ok {
		c.mu.Unlock()
		cl.addDataListener(onData)
		c.log.Debug().Str("identity", task.Identity).Msg("attached to in-flight task")
		return cl
	}
	cl := &call{identity: task.Identity, done: make(chan struct{})}
	cl.addDataListener(onData)
	c.inflight[task.Identity] = cl
	c.mu.Unlock()

	task.OnData = cl.data
	task.OnResult = func(res transport.Result) { c.complete(cl, res) }
	if _, err := c.engine.Submit(task, policy); err != nil {
		c.log.Error().Err(err).Str("identity", task.Identity).Msg("submit failed")
		c.complete(cl, transport.Result{Err: err})
		return cl
	}
	c.log.Debug().
		Str("identity", task.Identity).
		Str("queue", policy.Name()).
		Msg("transport task enqueued")
	return cl
}

func (c *Coordinator) complete(cl *call, res transport.Result) {
	c.mu.Lock()
	if c.inflight[cl.identity] == cl {
		delete(c.inflight, cl.identity)
	}
	c.mu.Unlock()

	cl.res = res
	close(cl.done)
	c.registry.deliver(cl.identity, res)
}

// cached resolves a stored value as T: first the store's native value or
// its body run through decode, then the generic snapshot. Mismatches are
// logged and reported as no value.
func cached[T any](ctx context.Context, c *Coordinator, identity string, decode func([]byte) (T, error)) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}
	entry, err := c.store.Read(ctx, identity)
	if err == nil {
		if v, ok := entry.Value.(T); ok {
			return v, true
		}
		if entry.Value != nil {
			c.log.Warn().
				Str("identity", identity).
				Type("stored", entry.Value).
				Type("want", zero).
				Msg("cached value has unexpected type")
		}
		if len(entry.Body) > 0 {
			v, derr := decode(entry.Body)
			if derr == nil {
				return v, true
			}
			c.log.Warn().Err(derr).Str("identity", identity).Msg("cached body does not decode")
		}
	}

	m, err := c.store.Snapshot(ctx, identity)
	if err != nil {
		return zero, false
	}
	v, err := cache.DecodeSnapshot[T](m)
	if err != nil {
		c.log.Warn().Err(err).Str("identity", identity).Msg("cached snapshot does not decode")
		return zero, false
	}
	return v, true
}
