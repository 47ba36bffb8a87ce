package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/internal/config"
	"github.com/briangreenhill/requestkit/internal/jobs"
	"github.com/briangreenhill/requestkit/internal/logging"
	"github.com/briangreenhill/requestkit/strava"
	"github.com/briangreenhill/requestkit/transport"
)

func main() {
	logger := logging.New(os.Stderr, "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	logger = logging.New(os.Stdout, cfg.LogLevel)

	ctx := context.Background()
	store, closeStore, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("open cache")
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("close cache")
		}
	}()
	if store == nil || cfg.Cache == cache.BackendMemory {
		logger.Warn().Str("backend", cfg.Cache).Msg("refreshes will not be visible to other processes")
	}

	opts := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		transport.WithStore(store),
		transport.WithLogger(logger),
	}
	if cfg.HasStrava() {
		seed := &oauth2.Token{AccessToken: cfg.Strava.AccessToken, RefreshToken: cfg.Strava.RefreshToken}
		ts, err := strava.TokenSource(ctx, strava.OAuthConfig(cfg.Strava.ClientID, cfg.Strava.ClientSecret), "", seed)
		if err != nil {
			logger.Warn().Err(err).Msg("strava refreshes will be unauthorized")
		} else {
			opts = append(opts, transport.WithHostTokenSource("www.strava.com", ts))
		}
	}
	engine := transport.NewHTTPEngine(opts...)
	defer engine.Close()

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    8,
		StrictPriority: false,
		Queues:         queues(cfg.Queues),
		Logger:         asynqLogger{logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskRefresh, jobs.NewRefreshHandler(engine, logger))

	logger.Info().Str("redis", cfg.RedisAddr).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// queues gives the refresh queue the highest priority and lets configured
// queue sizes act as priorities for the rest.
func queues(configured map[string]int) map[string]int {
	q := map[string]int{
		jobs.QueueRefresh: 10,
		"default":         5,
	}
	for name, n := range configured {
		if _, ok := q[name]; !ok {
			q[name] = n
		}
	}
	return q
}

func sprint(args []any) string { return fmt.Sprint(args...) }

// asynqLogger routes asynq's logs through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(sprint(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(sprint(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(sprint(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(sprint(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(sprint(args)) }
