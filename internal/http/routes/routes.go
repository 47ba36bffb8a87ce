package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/dispatch"
	appmw "github.com/briangreenhill/requestkit/internal/http/middleware"
	"github.com/briangreenhill/requestkit/internal/jobs"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
)

type Server struct {
	Router  *chi.Mux
	Store   cache.Store // nil when caching is disabled
	Gen     *request.Generator
	Catalog *request.Catalog
	Queue   jobs.Enqueuer
	Log     zerolog.Logger
}

type ServerOptions struct {
	Store     cache.Store
	Generator *request.Generator
	Catalog   *request.Catalog
	Queue     jobs.Enqueuer
	APIKey    string
	Log       zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	gen := opts.Generator
	if gen == nil {
		gen = request.NewGenerator(opts.Log)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = &request.Catalog{}
	}
	s := &Server{Router: r, Store: opts.Store, Gen: gen, Catalog: cat, Queue: opts.Queue, Log: opts.Log}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.RequireKey(opts.APIKey))
		pr.Get("/endpoints", s.handleEndpoints)
		pr.Post("/identity", s.handleIdentity)
		pr.Get("/cache/{key}", s.handleCacheGet)
		pr.Delete("/cache/{key}", s.handleCachePurge)
		pr.Post("/refresh", s.handleRefresh)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.Router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// identityRequest names either a catalog endpoint or a raw method and URL.
type identityRequest struct {
	Endpoint string         `json:"endpoint,omitempty"`
	Method   string         `json:"method,omitempty"`
	URL      string         `json:"url,omitempty"`
	Params   request.Params `json:"params,omitempty"`
	Queue    string         `json:"queue,omitempty"`
}

type identityResponse struct {
	Identity string `json:"identity"`
	URL      string `json:"url"`
	Expiry   string `json:"expiry,omitempty"`
	Queue    string `json:"queue,omitempty"`
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": s.Catalog.Names()})
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Endpoint == "" {
		m, err := request.ParseMethod(req.Method)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, errors.New("url or endpoint required"))
			return
		}
		writeJSON(w, http.StatusOK, identityResponse{
			Identity: s.Gen.Generate(m, req.URL, req.Params),
			URL:      req.URL,
		})
		return
	}

	ep, task, ok := s.task(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		Identity: task.Identity,
		URL:      task.URL,
		Expiry:   task.Expiry.String(),
		Queue:    request.QueueOf(ep).Name(),
	})
}

// task resolves a catalog request into a transport task, writing the error
// response itself when it cannot.
func (s *Server) task(w http.ResponseWriter, req identityRequest) (*request.Endpoint, transport.Task, bool) {
	ep, err := s.Catalog.Lookup(req.Endpoint)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, transport.Task{}, false
	}
	t, err := dispatch.NewTask(s.Gen, ep, req.Params)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, transport.Task{}, false
	}
	return ep, t, true
}

func cacheKey(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	if k, err := url.PathUnescape(raw); err == nil {
		return k
	}
	return raw
}

type entryResponse struct {
	Identity  string          `json:"identity"`
	ETag      string          `json:"etag,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Expired   bool            `json:"expired"`
	Body      json.RawMessage `json:"body,omitempty"`
	Text      string          `json:"text,omitempty"`
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache disabled"))
		return
	}
	key := cacheKey(r)
	e, err := s.Store.Read(r.Context(), key)
	if errors.Is(err, cache.ErrCacheNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("identity", key).Msg("cache read failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := entryResponse{
		Identity:  key,
		ETag:      e.ETag,
		FetchedAt: e.FetchedAt,
		Expired:   e.Expired(time.Now()),
	}
	if !e.ExpiresAt.IsZero() {
		resp.ExpiresAt = &e.ExpiresAt
	}
	if json.Valid(e.Body) {
		resp.Body = e.Body
	} else {
		resp.Text = string(e.Body)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache disabled"))
		return
	}
	key := cacheKey(r)
	if err := s.Store.Purge(r.Context(), key); err != nil && !errors.Is(err, cache.ErrCacheNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no job queue configured"))
		return
	}
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, errors.New("endpoint required"))
		return
	}
	ep, task, ok := s.task(w, req)
	if !ok {
		return
	}
	if !task.Expiry.Tracked() {
		writeError(w, http.StatusUnprocessableEntity, errors.New("endpoint is not cached"))
		return
	}

	q := req.Queue
	if q == "" {
		q = jobs.QueueRefresh
		if p := request.QueueOf(ep); !p.IsUnbounded() && p != queue.Default {
			q = p.Name()
		}
	}
	queued, err := jobs.EnqueueRefresh(r.Context(), s.Queue, task, q, *hlog.FromRequest(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"identity": task.Identity,
		"queue":    q,
		"queued":   queued,
	})
}
