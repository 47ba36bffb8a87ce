package dispatch

import (
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/rs/zerolog"
)

// Option adjusts a single Fetch or Observe call.
type Option func(*callOptions)

type callOptions struct {
	force      bool
	skipCached bool
	queue      *queue.Policy
	onData     func([]byte)
}

// Force enqueues a transport task even when the cached entry is fresh.
func Force() Option {
	return func(o *callOptions) { o.force = true }
}

// SkipCached suppresses the synchronous cached delivery. Freshness is still
// honored, so a fresh entry does not cause a fetch.
func SkipCached() Option {
	return func(o *callOptions) { o.skipCached = true }
}

// OnQueue overrides the descriptor's queue policy.
func OnQueue(p queue.Policy) Option {
	return func(o *callOptions) { o.queue = &p }
}

// OnData streams response chunks of the live task to fn.
func OnData(fn func(chunk []byte)) Option {
	return func(o *callOptions) { o.onData = fn }
}

func queueFor(d any, o callOptions) queue.Policy {
	if o.queue != nil {
		return *o.queue
	}
	return request.QueueOf(d)
}

func collect(opts []Option) callOptions {
	var o callOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// CoordinatorOption configures New.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used by the coordinator and its registry.
func WithLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

// WithGenerator sets the identity generator. By default one is built on the
// coordinator's logger.
func WithGenerator(g *request.Generator) CoordinatorOption {
	return func(c *Coordinator) { c.gen = g }
}
