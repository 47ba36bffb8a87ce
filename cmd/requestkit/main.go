package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/requestkit/cache"
	"github.com/briangreenhill/requestkit/dispatch"
	"github.com/briangreenhill/requestkit/hevy"
	"github.com/briangreenhill/requestkit/internal/config"
	"github.com/briangreenhill/requestkit/internal/logging"
	"github.com/briangreenhill/requestkit/plugins"
	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/strava"
	"github.com/briangreenhill/requestkit/transport"
)

const usage = `Usage: requestkit <command> [args]

Commands:
  identity METHOD URL [PARAMS_JSON]   Print the request identity
  get [-force] ENDPOINT [PARAMS_JSON] Fetch a catalog endpoint through the cache
  endpoints                           List catalog endpoints
  hevy                                Show the latest Hevy workout
  strava [ACTIVITY_ID]                Show a Strava run (latest when no ID)
  version                             Print the version

Environment:
  REQUESTKIT_CACHE        none, memory, file, sqlite, leveldb or postgres (default file)
  REQUESTKIT_CACHE_DIR    Directory or file for file, sqlite and leveldb caches
  REQUESTKIT_CATALOG      Endpoint catalog (default endpoints.yaml)
  STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET, STRAVA_REFRESH_TOKEN
  HEVY_API_KEY
`

const version = "requestkit v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := runCLI(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	switch args[0] {
	case "help", "--help", "-h":
		fmt.Fprint(out, usage)
		return nil
	case "version", "--version", "-v":
		fmt.Fprintln(out, version)
		return nil
	case "identity":
		return runIdentity(args[1:], out)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logging.Console(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()

	switch args[0] {
	case "get":
		return a.runGet(ctx, args[1:], out)
	case "endpoints":
		cat, err := request.LoadCatalog(cfg.Catalog)
		if err != nil {
			return err
		}
		for _, n := range cat.Names() {
			fmt.Fprintln(out, n)
		}
		return nil
	case "hevy", "strength", "--strength", "-s":
		return a.runPlugin(ctx, "hevy", "", out)
	case "strava":
		id := ""
		if len(args) > 1 {
			id = args[1]
		}
		return a.runPlugin(ctx, "strava", id, out)
	}
	return fmt.Errorf("unknown command: %s", args[0])
}

func parseParams(args []string) (request.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var p request.Params
	if err := json.Unmarshal([]byte(args[0]), &p); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return p, nil
}

func runIdentity(args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: requestkit identity METHOD URL [PARAMS_JSON]")
	}
	m, err := request.ParseMethod(args[0])
	if err != nil {
		return err
	}
	params, err := parseParams(args[2:])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, request.GenerateID(m, args[1], params))
	return nil
}

// app is the wiring shared by the fetching commands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   cache.Store
	closeFn func() error
	exec    *queue.Executor
	engines []*transport.HTTPEngine
	coord   *dispatch.Coordinator
	plugins *plugins.Registry
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, closeFn, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		closeFn: closeFn,
		exec:    queue.NewExecutor(queue.WithWorkers(cfg.Queues), queue.WithLogger(log)),
		plugins: plugins.NewRegistry(),
	}
	a.coord = a.coordinator()
	if err := a.registerPlugins(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) registerPlugins(ctx context.Context) error {
	if a.cfg.HasHevy() {
		c, err := hevy.New(a.coord, a.cfg.Hevy.APIKey)
		if err != nil {
			return err
		}
		a.plugins.Register(hevy.NewPlugin(c))
	}
	if a.cfg.HasStrava() {
		ts, err := stravaTokens(ctx, a.cfg)
		if err != nil {
			a.log.Warn().Err(err).Msg("strava disabled")
			return nil
		}
		c, err := strava.New(a.coordinator(transport.WithTokenSource(ts)))
		if err != nil {
			return err
		}
		a.plugins.Register(strava.NewPlugin(c))
	}
	return nil
}

// coordinator builds a coordinator over a new engine that shares the app's
// store and executor.
func (a *app) coordinator(extra ...transport.Option) *dispatch.Coordinator {
	opts := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		transport.WithStore(a.store),
		transport.WithExecutor(a.exec),
		transport.WithLogger(a.log),
	}
	e := transport.NewHTTPEngine(append(opts, extra...)...)
	a.engines = append(a.engines, e)
	return dispatch.New(e, a.store, dispatch.WithLogger(a.log))
}

func stravaTokens(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	seed := &oauth2.Token{AccessToken: cfg.Strava.AccessToken, RefreshToken: cfg.Strava.RefreshToken}
	path, err := strava.DefaultTokenPath()
	if err != nil {
		path = ""
	}
	return strava.TokenSource(ctx, strava.OAuthConfig(cfg.Strava.ClientID, cfg.Strava.ClientSecret), path, seed)
}

func (a *app) Close() {
	for _, e := range a.engines {
		e.Close()
	}
	a.exec.Close()
	if err := a.closeFn(); err != nil {
		a.log.Warn().Err(err).Msg("closing cache")
	}
}

func (a *app) runGet(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "bypass a fresh cached value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: requestkit get [-force] ENDPOINT [PARAMS_JSON]")
	}

	cat, err := request.LoadCatalog(a.cfg.Catalog)
	if err != nil {
		return err
	}
	ep, err := cat.Lookup(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(cat.Names(), ", "))
	}
	params, err := parseParams(fs.Args()[1:])
	if err != nil {
		return err
	}

	var opts []dispatch.Option
	if *force {
		opts = append(opts, dispatch.Force())
	}
	res, err := dispatch.Fetch(ctx, a.coord, ep, params, opts...)
	if err != nil {
		return err
	}
	a.log.Debug().Str("identity", res.Identity).Bool("live", res.Live()).Msg("fetch")

	body, err := res.Wait(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}

func (a *app) runPlugin(ctx context.Context, name, id string, out io.Writer) error {
	p, err := a.plugins.Lookup(name)
	if err != nil {
		if avail := a.plugins.List(); len(avail) > 0 {
			return fmt.Errorf("%w; available: %v", err, avail)
		}
		return fmt.Errorf("%w; no plugins are configured, set the required environment variables", err)
	}
	var output string
	if id != "" {
		output, err = p.Get(ctx, id)
	} else {
		output, err = p.GetLatest(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	_, err = fmt.Fprint(out, output)
	return err
}
