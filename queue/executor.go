package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("executor closed")

// DefaultBuffer is the number of tasks a named queue holds before Submit blocks.
const DefaultBuffer = 64

// Executor runs funcs according to their queue policy.
type Executor struct {
	mu     sync.RWMutex
	sizes  map[string]int
	queues map[string]chan func()
	buffer int
	closed bool
	wg     conc.WaitGroup
	log    zerolog.Logger
}

type Option func(*Executor)

// WithWorkers sets the pool size of named queues, keyed by queue name.
// Queues not listed get one worker.
func WithWorkers(sizes map[string]int) Option {
	return func(e *Executor) {
		for k, v := range sizes {
			e.sizes[k] = v
		}
	}
}

func WithBuffer(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.buffer = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		sizes:  map[string]int{},
		queues: map[string]chan func(){},
		buffer: DefaultBuffer,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit schedules fn on the queue selected by p. It blocks while the named
// queue's buffer is full.
func (e *Executor) Submit(p Policy, fn func()) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	if p.IsUnbounded() {
		e.wg.Go(func() { e.run(p, fn) })
		e.mu.RUnlock()
		return nil
	}
	ch, ok := e.queues[p.Name()]
	e.mu.RUnlock()

	if !ok {
		var err error
		if ch, err = e.start(p); err != nil {
			return err
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	ch <- fn
	return nil
}

func (e *Executor) start(p Policy) (chan func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if ch, ok := e.queues[p.Name()]; ok {
		return ch, nil
	}
	n := e.sizes[p.Name()]
	if n <= 0 {
		n = 1
	}
	ch := make(chan func(), e.buffer)
	e.queues[p.Name()] = ch
	for i := 0; i < n; i++ {
		e.wg.Go(func() {
			for fn := range ch {
				e.run(p, fn)
			}
		})
	}
	e.log.Debug().Str("queue", p.Name()).Int("workers", n).Msg("queue started")
	return ch, nil
}

func (e *Executor) run(p Policy, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("queue", p.Name()).
				Str("panic", fmt.Sprint(r)).
				Msg("task panicked")
		}
	}()
	fn()
}

// Close stops accepting work and waits for queued and running tasks.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, ch := range e.queues {
		close(ch)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
