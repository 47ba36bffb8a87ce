package dispatch

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type userParams struct {
	ID int `json:"id"`
}

type userDesc struct {
	request.JSONDecoder[user]
	policy *request.CachePolicy
	host   string
}

func newUserDesc(p request.CachePolicy) userDesc { return userDesc{policy: &p} }

func (d userDesc) Method() request.Method { return request.GET }
func (d userDesc) Host() string {
	if d.host != "" {
		return d.host
	}
	return "api.example.com"
}
func (d userDesc) Path(p userParams) string { return "/users/" + strconv.Itoa(p.ID) }
func (d userDesc) CachePolicy() request.CachePolicy {
	if d.policy == nil {
		return request.Never()
	}
	return *d.policy
}

// fakeEngine records submitted tasks and completes them on demand.
type fakeEngine struct {
	mu       sync.Mutex
	tasks    []transport.Task
	policies []queue.Policy
	err      error
}

type fakeHandle struct{ identity string }

func (h fakeHandle) ID() string             { return "fake" }
func (h fakeHandle) Identity() string       { return h.identity }
func (h fakeHandle) State() transport.State { return transport.StateQueued }
func (h fakeHandle) Cancel()                {}
func (h fakeHandle) Done() <-chan struct{}  { return nil }

func (f *fakeEngine) Submit(task transport.Task, p queue.Policy) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.policies = append(f.policies, p)
	return fakeHandle{identity: task.Identity}, nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeEngine) task(i int) transport.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[i]
}

func (f *fakeEngine) complete(i int, res transport.Result) {
	f.task(i).OnResult(res)
}

// mockStore is a testify mock of cache.Store.
type mockStore struct{ mock.Mock }

func (m *mockStore) Read(ctx context.Context, key string) (*cache.Entry, error) {
	args := m.Called(ctx, key)
	e, _ := args.Get(0).(*cache.Entry)
	return e, args.Error(1)
}

func (m *mockStore) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	args := m.Called(ctx, key)
	v, _ := args.Get(0).(map[string]any)
	return v, args.Error(1)
}

func (m *mockStore) Write(ctx context.Context, key string, e *cache.Entry) error {
	return m.Called(ctx, key, e).Error(0)
}

func (m *mockStore) Purge(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) IsExpired(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetETag(ctx context.Context, key string) string {
	return m.Called(ctx, key).String(0)
}

func identityOf(t *testing.T, c *Coordinator, d userDesc, p userParams) string {
	t.Helper()
	task, err := NewTask(c.Generator(), d, p)
	require.NoError(t, err)
	return task.Identity
}

// seed writes a fresh entry for d/p into store.
func seed(t *testing.T, c *Coordinator, store cache.Store, d userDesc, p userParams, e *cache.Entry) string {
	t.Helper()
	id := identityOf(t, c, d, p)
	require.NoError(t, store.Write(context.Background(), id, e))
	return id
}

func fresh() time.Time { return time.Now().Add(time.Hour) }
func stale() time.Time { return time.Now().Add(-time.Hour) }
