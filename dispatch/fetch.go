package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
)

// ErrUnexpectedType is returned when a live result holds a value of another
// type and has no body to decode.
var ErrUnexpectedType = errors.New("result has unexpected type")

// Result is the outcome of one Fetch: an optional value served from cache,
// and an optional live task the caller can wait for.
type Result[T any] struct {
	Identity string

	cached    T
	hasCached bool
	visible   bool
	live      *call
	decode    func([]byte) (T, error)

	once  sync.Once
	value T
	err   error
}

// Cached returns the fresh cached value, if one was served.
func (r *Result[T]) Cached() (T, bool) {
	if !r.visible {
		var zero T
		return zero, false
	}
	return r.cached, r.hasCached
}

// Live reports whether a transport task backs this result.
func (r *Result[T]) Live() bool { return r.live != nil }

// Wait returns the live value, or the cached value when no task was needed.
// It resolves exactly once; later calls return the same outcome.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	if r.live == nil {
		r.once.Do(func() { r.value = r.cached })
		return r.value, nil
	}
	select {
	case <-r.live.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	r.once.Do(func() { r.value, r.err = convert(r.live.res, r.decode) })
	return r.value, r.err
}

// convert turns a transport result into T, decoding the body when the engine
// produced a value of another type.
func convert[T any](res transport.Result, decode func([]byte) (T, error)) (T, error) {
	var zero T
	if res.Err != nil {
		return zero, res.Err
	}
	if v, ok := res.Value.(T); ok {
		return v, nil
	}
	if len(res.Body) > 0 && decode != nil {
		return decode(res.Body)
	}
	return zero, fmt.Errorf("%w: %T", ErrUnexpectedType, res.Value)
}

// plan is the coordinator's decision for one call.
type plan[T any] struct {
	task      transport.Task
	opts      callOptions
	cached    T
	hasCached bool
	enqueue   bool
}

func prepare[P, T any](ctx context.Context, c *Coordinator, d request.Descriptor[P, T], params P, opts []Option) (*plan[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := collect(opts)
	task, err := NewTask(c.gen, d, params)
	if err != nil {
		c.log.Error().Err(err).Str("host", d.Host()).Msg("invalid request descriptor")
		return nil, err
	}

	p := &plan[T]{task: task, opts: o}
	expired := c.expired(ctx, task.Identity, task.Expiry)
	if !expired {
		p.cached, p.hasCached = cached(ctx, c, task.Identity, d.Decode)
	}
	// A fresh entry that cannot be read as T falls through to the network.
	p.enqueue = expired || o.force || !p.hasCached
	return p, nil
}

// Fetch computes the request identity, serves a fresh cached value when
// there is one, and enqueues a transport task when the entry is expired,
// unreadable, or Force is given. Concurrent calls for the same identity share
// one task.
func Fetch[P, T any](ctx context.Context, c *Coordinator, d request.Descriptor[P, T], params P, opts ...Option) (*Result[T], error) {
	p, err := prepare(ctx, c, d, params, opts)
	if err != nil {
		return nil, err
	}
	r := &Result[T]{
		Identity:  p.task.Identity,
		cached:    p.cached,
		hasCached: p.hasCached,
		visible:   p.hasCached && !p.opts.skipCached,
		decode:    d.Decode,
	}
	if p.enqueue {
		r.live = c.dispatch(p.task, queueFor(d, p.opts), p.opts.onData, nil)
	}
	return r, nil
}

// Get returns the fresh cached value or waits for the live one.
func Get[P, T any](ctx context.Context, c *Coordinator, d request.Descriptor[P, T], params P, opts ...Option) (T, error) {
	r, err := Fetch(ctx, c, d, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Wait(ctx)
}
