// Package transport executes request tasks. The Engine interface is the
// boundary the dispatch layer programs against; HTTPEngine is the net/http
// implementation.
package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/google/uuid"
)

// Task describes one network call. URL already carries the query string;
// Body is the encoded parameters for methods that send one.
type Task struct {
	Identity string
	Method   request.Method
	URL      string
	Header   map[string]string
	Body     []byte
	// Expiry decides whether the response is stored and for how long.
	Expiry request.Expiry
	// Decode turns the response body into the typed value. Optional.
	Decode func(data []byte) (any, error)
	// OnData receives response chunks as they arrive. Optional.
	OnData func(chunk []byte)
	// OnResult is called exactly once when the task finishes.
	OnResult func(Result)
}

// Result is the outcome of a task. Err is set on failure; Value and Body
// otherwise.
type Result struct {
	Value     any
	Body      []byte
	Status    int
	FromCache bool
	Err       error
}

// State is the lifecycle of a submitted task.
type State int32

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Handle refers to a submitted task.
type Handle interface {
	ID() string
	Identity() string
	State() State
	// Cancel aborts the task if it has not completed. OnResult still fires,
	// with a context error.
	Cancel()
	// Done is closed after OnResult returns.
	Done() <-chan struct{}
}

// Engine runs tasks on the queue chosen by policy.
type Engine interface {
	Submit(task Task, policy queue.Policy) (Handle, error)
}

type handle struct {
	id       string
	identity string
	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func newHandle(identity string, cancel context.CancelFunc) *handle {
	return &handle{
		id:       uuid.NewString(),
		identity: identity,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (h *handle) ID() string            { return h.id }
func (h *handle) Identity() string      { return h.identity }
func (h *handle) State() State          { return State(h.state.Load()) }
func (h *handle) Done() <-chan struct{} { return h.done }
func (h *handle) set(s State)           { h.state.Store(int32(s)) }
func (h *handle) Cancel() {
	if h.State() == StateCompleted {
		return
	}
	h.cancel()
}

// finish delivers the result and releases waiters. It runs at most once.
func (h *handle) finish(t Task, res Result) {
	h.once.Do(func() {
		if t.OnResult != nil {
			t.OnResult(res)
		}
		close(h.done)
		h.cancel()
	})
}
