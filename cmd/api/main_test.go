package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/internal/config"
	"github.com/briangreenhill/requestkit/internal/http/routes"
	"github.com/briangreenhill/requestkit/request"
)

func TestNewServer(t *testing.T) {
	cfg := &config.Config{Port: "9090", APIKey: "secret"}
	srv := newServer(cfg, routes.ServerOptions{
		Store:     cache.NewMemoryStore(),
		Generator: request.NewGenerator(zerolog.Nop()),
		Log:       zerolog.Nop(),
	})
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cache/x", nil)
	req.Header.Set("X-API-Key", "secret")
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
