package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/requestkit/request"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCLI(context.Background(), args, &out)
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HEVY_API_KEY", "STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET", "STRAVA_REFRESH_TOKEN", "STRAVA_ACCESS_TOKEN"} {
		t.Setenv(k, "")
	}
	t.Setenv("REQUESTKIT_CACHE", "memory")
	t.Setenv("LOG_LEVEL", "error")
}

func TestHelpAndVersion(t *testing.T) {
	out, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: requestkit")

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestIdentity(t *testing.T) {
	out, err := run(t, "identity", "get", "https://api.example.com/users", `{"page":2}`)
	require.NoError(t, err)
	want := request.GenerateID(request.GET, "https://api.example.com/users", request.Params{"page": 2})
	assert.Equal(t, want+"\n", out)

	_, err = run(t, "identity", "GET")
	assert.Error(t, err)
	_, err = run(t, "identity", "GET", "https://x", "[1]")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	_, err := run(t, "frobnicate")
	assert.EqualError(t, err, "unknown command: frobnicate")
}

func TestPluginNotConfigured(t *testing.T) {
	isolate(t)
	_, err := run(t, "hevy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugins are configured")
}

func TestGetFromCatalog(t *testing.T) {
	isolate(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/users/7", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":7,"name":"ada"}`)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	catalog := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(fmt.Sprintf(`
endpoints:
  user:
    method: GET
    scheme: http
    host: %s
    port: %s
    path: /users/{id}
    cache: {kind: timed, minutes: 5}
`, u.Hostname(), u.Port())), 0o600))
	t.Setenv("REQUESTKIT_CATALOG", catalog)

	out, err := run(t, "get", "user", `{"id":7}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"ada"}`, strings.TrimSpace(out))

	out, err = run(t, "endpoints")
	require.NoError(t, err)
	assert.Equal(t, "user\n", out)

	_, err = run(t, "get", "nope")
	assert.ErrorIs(t, err, request.ErrUnknownEndpoint)

	_, err = run(t, "get", "-force", "user", `{"id":7}`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}
