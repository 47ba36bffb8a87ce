// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/internal/config"
	"github.com/briangreenhill/requestkit/internal/http/routes"
	"github.com/briangreenhill/requestkit/internal/logging"
	"github.com/briangreenhill/requestkit/request"
)

func main() {
	logger := logging.New(os.Stderr, "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	logger = logging.New(os.Stdout, cfg.LogLevel)
	logger.Info().Str("port", cfg.Port).Msg("starting api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("open cache")
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("close cache")
		}
	}()

	cat, err := request.LoadCatalog(cfg.Catalog)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("catalog", cfg.Catalog).Msg("no endpoint catalog; only raw identities are available")
		cat = nil
	} else if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	srv := newServer(cfg, routes.ServerOptions{
		Store:     store,
		Generator: request.NewGenerator(logger),
		Catalog:   cat,
		Queue:     client,
		Log:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

// newServer builds the HTTP server for cfg. The API key always comes from
// cfg.
func newServer(cfg *config.Config, opts routes.ServerOptions) *http.Server {
	opts.APIKey = cfg.APIKey
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
