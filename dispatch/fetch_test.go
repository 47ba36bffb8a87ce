package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFreshnessTable(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		force     bool
		wantTasks int
	}{
		{"fresh", fresh(), false, 0},
		{"fresh forced", fresh(), true, 1},
		{"expired", stale(), false, 1},
		{"expired forced", stale(), true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			engine := &fakeEngine{}
			store := cache.NewMemoryStore()
			c := New(engine, store)
			d := newUserDesc(request.Timed(0, 1, 0))
			p := userParams{ID: 7}
			seed(t, c, store, d, p, &cache.Entry{Value: user{ID: 7, Name: "cached"}, ExpiresAt: tt.expiresAt})

			var opts []Option
			if tt.force {
				opts = append(opts, Force())
			}
			r, err := Fetch(ctx, c, d, p, opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTasks, engine.count())
			assert.Equal(t, tt.wantTasks == 1, r.Live())

			if tt.wantTasks == 0 {
				v, ok := r.Cached()
				require.True(t, ok)
				assert.Equal(t, "cached", v.Name)

				got, err := r.Wait(ctx)
				require.NoError(t, err)
				assert.Equal(t, "cached", got.Name)
			}
		})
	}
}

func TestFetchUnknownProbeEnqueues(t *testing.T) {
	store := &mockStore{}
	store.On("IsExpired", mock.Anything, mock.Anything).Return(false, errors.New("disk on fire"))

	engine := &fakeEngine{}
	c := New(engine, store)
	r, err := Fetch(context.Background(), c, newUserDesc(request.Forever()), userParams{ID: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, engine.count())
	assert.True(t, r.Live())
	_, ok := r.Cached()
	assert.False(t, ok)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
}

func TestFetchMissingEntryEnqueues(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, cache.NewMemoryStore())
	_, err := Fetch(context.Background(), c, newUserDesc(request.Forever()), userParams{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.count())
	assert.True(t, engine.task(0).Expiry.IsUnbounded())
}

func TestFetchNeverPolicy(t *testing.T) {
	store := &mockStore{}
	engine := &fakeEngine{}
	c := New(engine, store)

	for i := 0; i < 2; i++ {
		r, err := Fetch(context.Background(), c, newUserDesc(request.Never()), userParams{ID: 1})
		require.NoError(t, err)
		assert.True(t, r.Live())
		engine.complete(i, transport.Result{Value: user{ID: 1}})
	}
	assert.Equal(t, 2, engine.count())
	assert.False(t, engine.task(0).Expiry.Tracked(), "task must not be tagged for storage")
	store.AssertNotCalled(t, "IsExpired", mock.Anything, mock.Anything)
}

func TestFetchNilStore(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, nil)
	r, err := Fetch(context.Background(), c, newUserDesc(request.Forever()), userParams{ID: 1})
	require.NoError(t, err)
	assert.True(t, r.Live())
}

func TestFetchInvalidPolicy(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, cache.NewMemoryStore())

	_, err := Fetch(context.Background(), c, newUserDesc(request.Timed(0, 0, 0)), userParams{ID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, request.ErrInvalidPolicy)
	var pe *request.PolicyError
	assert.ErrorAs(t, err, &pe)
	assert.Zero(t, engine.count())
}

func TestFetchCachedDecodePaths(t *testing.T) {
	ctx := context.Background()
	d := newUserDesc(request.Forever())
	p := userParams{ID: 7}

	t.Run("native value", func(t *testing.T) {
		store := cache.NewMemoryStore()
		engine := &fakeEngine{}
		c := New(engine, store)
		seed(t, c, store, d, p, &cache.Entry{Value: user{ID: 7, Name: "native"}})

		r, err := Fetch(ctx, c, d, p)
		require.NoError(t, err)
		v, ok := r.Cached()
		require.True(t, ok)
		assert.Equal(t, "native", v.Name)
		assert.Zero(t, engine.count())
	})

	t.Run("body through decoder", func(t *testing.T) {
		store := cache.NewMemoryStore()
		engine := &fakeEngine{}
		c := New(engine, store)
		seed(t, c, store, d, p, &cache.Entry{Body: []byte(`{"id":7,"name":"body"}`)})

		r, err := Fetch(ctx, c, d, p)
		require.NoError(t, err)
		v, ok := r.Cached()
		require.True(t, ok)
		assert.Equal(t, "body", v.Name)
		assert.Zero(t, engine.count())
	})

	t.Run("generic snapshot", func(t *testing.T) {
		store := cache.NewMemoryStore()
		engine := &fakeEngine{}
		c := New(engine, store)
		// id as a string fails the JSON decoder but decodes from the snapshot
		seed(t, c, store, d, p, &cache.Entry{Value: "wrong type", Body: []byte(`{"id":"7","name":"snapshot"}`)})

		r, err := Fetch(ctx, c, d, p)
		require.NoError(t, err)
		v, ok := r.Cached()
		require.True(t, ok)
		assert.Equal(t, user{ID: 7, Name: "snapshot"}, v)
		assert.Zero(t, engine.count())
	})

	t.Run("mismatch falls through", func(t *testing.T) {
		store := cache.NewMemoryStore()
		engine := &fakeEngine{}
		c := New(engine, store)
		seed(t, c, store, d, p, &cache.Entry{Value: 42, Body: []byte(`[1,2,3]`)})

		r, err := Fetch(ctx, c, d, p)
		require.NoError(t, err)
		_, ok := r.Cached()
		assert.False(t, ok)
		assert.Equal(t, 1, engine.count())
	})
}

func TestFetchSkipCached(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	engine := &fakeEngine{}
	c := New(engine, store)
	d := newUserDesc(request.Forever())
	seed(t, c, store, d, userParams{ID: 1}, &cache.Entry{Value: user{ID: 1, Name: "c"}})

	r, err := Fetch(ctx, c, d, userParams{ID: 1}, SkipCached())
	require.NoError(t, err)
	_, ok := r.Cached()
	assert.False(t, ok)
	assert.False(t, r.Live())
	assert.Zero(t, engine.count())

	v, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", v.Name)
}

func TestFetchDedup(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	c := New(engine, cache.NewMemoryStore())
	d := newUserDesc(request.Timed(0, 0, 5))

	a, err := Fetch(ctx, c, d, userParams{ID: 1})
	require.NoError(t, err)
	b, err := Fetch(ctx, c, d, userParams{ID: 1})
	require.NoError(t, err)
	other, err := Fetch(ctx, c, d, userParams{ID: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, engine.count())
	assert.Equal(t, a.Identity, b.Identity)
	assert.NotEqual(t, a.Identity, other.Identity)
	assert.True(t, c.InFlight(a.Identity))

	engine.complete(0, transport.Result{Value: user{ID: 1, Name: "live"}})
	assert.False(t, c.InFlight(a.Identity))

	for _, r := range []*Result[user]{a, b} {
		v, err := r.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, "live", v.Name)
	}

	// A completed task does not absorb later calls.
	_, err = Fetch(ctx, c, d, userParams{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, engine.count())
}

func TestWaitDecodesBodyAndReportsErrors(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	c := New(engine, nil)
	d := newUserDesc(request.Never())

	r, err := Fetch(ctx, c, d, userParams{ID: 1})
	require.NoError(t, err)
	engine.complete(0, transport.Result{Body: []byte(`{"id":1,"name":"raw"}`)})
	v, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "raw", v.Name)

	r, err = Fetch(ctx, c, d, userParams{ID: 1})
	require.NoError(t, err)
	boom := &transport.StatusError{Method: "GET", Status: 500, Text: "500 Internal Server Error"}
	engine.complete(1, transport.Result{Err: boom})
	_, err = r.Wait(ctx)
	assert.ErrorIs(t, err, boom)
	_, again := r.Wait(ctx)
	assert.Equal(t, err, again)
}

func TestWaitHonorsContext(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, nil)
	r, err := Fetch(context.Background(), c, newUserDesc(request.Never()), userParams{ID: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitFailureResolvesCall(t *testing.T) {
	engine := &fakeEngine{err: queue.ErrClosed}
	c := New(engine, nil)
	r, err := Fetch(context.Background(), c, newUserDesc(request.Never()), userParams{ID: 1})
	require.NoError(t, err)
	_, err = r.Wait(context.Background())
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.False(t, c.InFlight(r.Identity))
}

func TestFetchQueuePolicy(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, nil)
	_, err := Fetch(context.Background(), c, newUserDesc(request.Never()), userParams{ID: 1}, OnQueue(queue.Named("users")))
	require.NoError(t, err)
	_, err = Fetch(context.Background(), c, newUserDesc(request.Never()), userParams{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, queue.Named("users"), engine.policies[0])
	assert.Equal(t, queue.Default, engine.policies[1])
}

func TestOnDataFansOut(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine, nil)
	d := newUserDesc(request.Never())
	var a, b atomic.Int32
	_, err := Fetch(context.Background(), c, d, userParams{ID: 1}, OnData(func([]byte) { a.Add(1) }))
	require.NoError(t, err)
	_, err = Fetch(context.Background(), c, d, userParams{ID: 1}, OnData(func([]byte) { b.Add(1) }))
	require.NoError(t, err)

	engine.task(0).OnData([]byte("x"))
	assert.EqualValues(t, 1, a.Load())
	assert.EqualValues(t, 1, b.Load())
}

func TestForeverNeverRefetches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/users/7", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":7,"name":"ada"}`)
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	engine := transport.NewHTTPEngine(transport.WithStore(store), transport.WithHTTPClient(srv.Client()))
	defer engine.Close()
	c := New(engine, store)

	d := newUserDesc(request.Forever())
	d.host = srv.Listener.Addr().String()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := Get(ctx, c, schemeHTTP{d}, userParams{ID: 7})
		require.NoError(t, err)
		assert.Equal(t, user{ID: 7, Name: "ada"}, u)
	}
	assert.EqualValues(t, 1, hits.Load())

	_, err := Get(ctx, c, schemeHTTP{d}, userParams{ID: 7}, Force())
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

type schemeHTTP struct{ userDesc }

func (schemeHTTP) Scheme() string { return "http" }
