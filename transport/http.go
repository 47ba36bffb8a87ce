package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const chunkSize = 32 * 1024

// HTTPEngine runs tasks with net/http. When a store is configured it
// revalidates stored responses with If-None-Match and writes fresh responses
// for tasks whose expiry is tracked.
type HTTPEngine struct {
	http     *http.Client
	store    cache.Store
	exec     *queue.Executor
	ownsExec bool
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*HTTPEngine)

func WithHTTPClient(h *http.Client) Option {
	return func(e *HTTPEngine) { e.http = h }
}

// WithStore sets the store responses are written to. nil disables storage.
func WithStore(s cache.Store) Option {
	return func(e *HTTPEngine) { e.store = s }
}

// WithExecutor shares an executor. Without it the engine owns one and
// closes it in Close.
func WithExecutor(x *queue.Executor) Option {
	return func(e *HTTPEngine) { e.exec = x }
}

// WithTokenSource authorizes every request with tokens from ts. Apply it
// after WithHTTPClient.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(e *HTTPEngine) {
		c := *e.http
		c.Transport = &oauth2.Transport{Source: ts, Base: c.Transport}
		e.http = &c
	}
}

// WithHostTokenSource authorizes only requests to host. Other hosts go out
// unchanged. Apply it after WithHTTPClient.
func WithHostTokenSource(host string, ts oauth2.TokenSource) Option {
	return func(e *HTTPEngine) {
		c := *e.http
		base := c.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.Transport = &hostRouter{
			host:   host,
			authed: &oauth2.Transport{Source: ts, Base: base},
			base:   base,
		}
		e.http = &c
	}
}

type hostRouter struct {
	host   string
	authed http.RoundTripper
	base   http.RoundTripper
}

func (h *hostRouter) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Hostname() == h.host {
		return h.authed.RoundTrip(r)
	}
	return h.base.RoundTrip(r)
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *HTTPEngine) { e.log = l }
}

func NewHTTPEngine(opts ...Option) *HTTPEngine {
	e := &HTTPEngine{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.exec == nil {
		e.exec = queue.NewExecutor(queue.WithLogger(e.log))
		e.ownsExec = true
	}
	return e
}

// Submit schedules task on the queue selected by policy.
func (e *HTTPEngine) Submit(task Task, policy queue.Policy) (Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(task.Identity, cancel)
	err := e.exec.Submit(policy, func() {
		if err := ctx.Err(); err != nil {
			h.set(StateCancelled)
			h.finish(task, Result{Err: err})
			return
		}
		h.set(StateRunning)
		res := e.Do(ctx, task)
		if errors.Is(res.Err, context.Canceled) {
			h.set(StateCancelled)
		} else {
			h.set(StateCompleted)
		}
		h.finish(task, res)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	e.log.Debug().
		Str("identity", task.Identity).
		Str("queue", policy.Name()).
		Str("task_id", h.ID()).
		Msg("task submitted")
	return h, nil
}

// Do runs task synchronously. It does not call OnResult.
func (e *HTTPEngine) Do(ctx context.Context, task Task) Result {
	start := e.now()
	res := e.do(ctx, task)
	ev := e.log.Debug()
	if res.Err != nil {
		ev = e.log.Warn().Err(res.Err)
	}
	ev.Str("identity", task.Identity).
		Str("method", string(task.Method)).
		Int("status", res.Status).
		Bool("from_cache", res.FromCache).
		Dur("duration", e.now().Sub(start)).
		Msg("task finished")
	return res
}

func (e *HTTPEngine) do(ctx context.Context, task Task) Result {
	var body io.Reader
	if len(task.Body) > 0 {
		body = bytes.NewReader(task.Body)
	}
	req, err := http.NewRequestWithContext(ctx, string(task.Method), task.URL, body)
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range task.Header {
		req.Header.Set(k, v)
	}

	storing := e.store != nil && task.Expiry.Tracked() && task.Identity != ""
	if storing {
		// try revalidate via If-None-Match
		if etag := e.store.GetETag(ctx, task.Identity); etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && storing:
		entry, err := e.store.Read(ctx, task.Identity)
		if err != nil {
			return Result{Status: resp.StatusCode, Err: fmt.Errorf("304 but no cached body for %s: %w", task.Identity, err)}
		}
		res := e.decode(task, entry.Body, resp.StatusCode)
		res.FromCache = true
		if res.Err == nil {
			e.write(ctx, task, entry.ETag, entry.Body, res.Value)
		}
		return res
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := readChunks(resp.Body, task.OnData)
		if err != nil {
			return Result{Status: resp.StatusCode, Err: err}
		}
		res := e.decode(task, data, resp.StatusCode)
		if res.Err == nil && storing {
			e.write(ctx, task, resp.Header.Get("ETag"), data, res.Value)
		}
		return res
	default:
		b, _ := io.ReadAll(resp.Body)
		return Result{Status: resp.StatusCode, Err: &StatusError{
			Method: string(task.Method),
			URL:    task.URL,
			Status: resp.StatusCode,
			Text:   resp.Status,
			Body:   b,
		}}
	}
}

func (e *HTTPEngine) decode(task Task, data []byte, status int) Result {
	res := Result{Body: data, Status: status}
	if task.Decode == nil {
		return res
	}
	v, err := task.Decode(data)
	if err != nil {
		res.Err = fmt.Errorf("decode %s: %w", task.URL, err)
		return res
	}
	res.Value = v
	return res
}

func (e *HTTPEngine) write(ctx context.Context, task Task, etag string, body []byte, value any) {
	now := e.now()
	err := e.store.Write(ctx, task.Identity, &cache.Entry{
		ETag:      etag,
		FetchedAt: now,
		ExpiresAt: task.Expiry.Deadline(now),
		Body:      body,
		Value:     value,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("identity", task.Identity).Msg("cache write failed")
	}
}

func readChunks(r io.Reader, onData func([]byte)) ([]byte, error) {
	if onData == nil {
		return io.ReadAll(r)
	}
	var out bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out.Write(chunk)
			onData(chunk)
		}
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close waits for queued tasks when the engine owns its executor.
func (e *HTTPEngine) Close() {
	if e.ownsExec {
		e.exec.Close()
	}
}
