package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNilSubscriber is returned by Observe when no subscriber is given.
var ErrNilSubscriber = errors.New("nil subscriber")

// Token identifies one registration. The zero Token is never issued.
type Token struct {
	Identity string
	id       uuid.UUID
}

func (t Token) String() string { return t.id.String() }

// Update is what an observer receives: a cached value, or the outcome of a
// live task.
type Update[T any] struct {
	Value     T
	Err       error
	FromCache bool
}

type observer struct {
	token Token
	// mu makes the liveness check and the live call one step.
	mu        sync.Mutex
	cancelled atomic.Bool
	alive     func() bool
	live      func(transport.Result)
}

// Registry tracks observers per identity. It holds subscribers weakly: a
// subscriber that is garbage collected is skipped and pruned, never called.
type Registry struct {
	log  zerolog.Logger
	mu   sync.Mutex
	subs map[string]map[uuid.UUID]*observer
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log, subs: map[string]map[uuid.UUID]*observer{}}
}

// add registers o. Stale registrations of the same identity are pruned
// first.
func (r *Registry) add(o *observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[o.token.Identity]
	if set == nil {
		set = map[uuid.UUID]*observer{}
	} else {
		prune(set)
	}
	set[o.token.id] = o
	r.subs[o.token.Identity] = set
}

func prune(set map[uuid.UUID]*observer) {
	for id, o := range set {
		if o.cancelled.Load() || !o.alive() {
			delete(set, id)
		}
	}
}

// Cancel removes the registration behind t. It reports whether it was still
// registered.
func (r *Registry) Cancel(t Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[t.Identity]
	o, ok := set[t.id]
	if !ok {
		return false
	}
	o.cancelled.Store(true)
	delete(set, t.id)
	if len(set) == 0 {
		delete(r.subs, t.Identity)
	}
	return true
}

// Len returns the number of live registrations for identity.
func (r *Registry) Len(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[identity]
	n := 0
	for _, o := range set {
		if !o.cancelled.Load() && o.alive() {
			n++
		}
	}
	return n
}

// deliver hands res to every registration of identity. Each registration
// gets one live delivery and is then removed.
func (r *Registry) deliver(identity string, res transport.Result) int {
	r.mu.Lock()
	set := r.subs[identity]
	delete(r.subs, identity)
	r.mu.Unlock()

	n, pruned := 0, 0
	for _, o := range set {
		o.mu.Lock()
		if o.cancelled.Load() || !o.alive() {
			pruned++
		} else {
			o.live(res)
			n++
		}
		o.mu.Unlock()
	}
	if pruned > 0 {
		r.log.Debug().Str("identity", identity).Int("pruned", pruned).Msg("released observers skipped")
	}
	return n
}

// Observe runs the same decision as Fetch for the request described by d and
// params and registers cb. When a fresh cached value exists cb receives it
// synchronously, before Observe returns. When a task runs, or is already
// running, cb receives its outcome once, after any cached delivery.
//
// sub is held weakly. cb receives the subscriber as an argument and must not
// capture it, or the registration keeps it alive.
func Observe[P, T, S any](ctx context.Context, c *Coordinator, d request.Descriptor[P, T], params P, sub *S, cb func(*S, Update[T]), opts ...Option) (Token, error) {
	if sub == nil {
		return Token{}, ErrNilSubscriber
	}
	p, err := prepare(ctx, c, d, params, opts)
	if err != nil {
		return Token{}, err
	}

	wp := weak.Make(sub)
	o := &observer{
		token: Token{Identity: p.task.Identity, id: uuid.New()},
		alive: func() bool { return wp.Value() != nil },
	}
	o.live = func(res transport.Result) {
		s := wp.Value()
		if s == nil {
			return
		}
		v, err := convert(res, d.Decode)
		cb(s, Update[T]{Value: v, Err: err, FromCache: res.FromCache})
	}

	if p.hasCached && !p.opts.skipCached {
		cb(sub, Update[T]{Value: p.cached, FromCache: true})
	}

	if p.enqueue {
		c.dispatch(p.task, queueFor(d, p.opts), p.opts.onData, func() { c.registry.add(o) })
	} else {
		c.registry.add(o)
	}
	return o.token, nil
}
