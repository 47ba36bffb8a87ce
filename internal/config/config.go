// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/requestkit/cache"
)

// Config holds all application configuration
type Config struct {
	Cache       string         `env:"REQUESTKIT_CACHE" envDefault:"file"`
	CacheDir    string         `env:"REQUESTKIT_CACHE_DIR"`
	DatabaseURL string         `env:"DATABASE_URL"`
	RedisAddr   string         `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	HTTPTimeout time.Duration  `env:"REQUESTKIT_HTTP_TIMEOUT" envDefault:"30s"`
	Queues      map[string]int `env:"REQUESTKIT_QUEUES" envSeparator:"," envKeyValSeparator:"="`
	Catalog     string         `env:"REQUESTKIT_CATALOG" envDefault:"endpoints.yaml"`
	LogLevel    string         `env:"LOG_LEVEL" envDefault:"info"`
	Port        string         `env:"PORT" envDefault:"8080"`
	APIKey      string         `env:"REQUESTKIT_API_KEY"`

	Strava StravaConfig
	Hevy   HevyConfig
}

// StravaConfig holds Strava-specific configuration
type StravaConfig struct {
	ClientID     string `env:"STRAVA_CLIENT_ID"`
	ClientSecret string `env:"STRAVA_CLIENT_SECRET"`
	RefreshToken string `env:"STRAVA_REFRESH_TOKEN"`
	AccessToken  string `env:"STRAVA_ACCESS_TOKEN"`
}

// HevyConfig holds Hevy-specific configuration
type HevyConfig struct {
	APIKey string `env:"HEVY_API_KEY"`
}

var backends = map[string]bool{
	cache.BackendNone:     true,
	cache.BackendMemory:   true,
	cache.BackendFile:     true,
	cache.BackendSQLite:   true,
	cache.BackendLevelDB:  true,
	cache.BackendPostgres: true,
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	if !backends[c.Cache] {
		return fmt.Errorf("REQUESTKIT_CACHE must be one of none, memory, file, sqlite, leveldb, postgres; got %q", c.Cache)
	}
	if c.Cache == cache.BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("REQUESTKIT_CACHE=postgres requires DATABASE_URL")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("REQUESTKIT_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	for name, n := range c.Queues {
		if n < 1 {
			return fmt.Errorf("queue %q needs at least one worker, got %d", name, n)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %v", err)
	}
	return nil
}

// CacheOptions maps the configuration onto cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{Backend: c.Cache, Dir: c.CacheDir, DatabaseURL: c.DatabaseURL}
}

// HasStrava returns true if Strava configuration is complete
func (c *Config) HasStrava() bool {
	return c.Strava.AccessToken != "" ||
		(c.Strava.ClientID != "" && c.Strava.ClientSecret != "" && c.Strava.RefreshToken != "")
}

// HasHevy returns true if Hevy configuration is complete
func (c *Config) HasHevy() bool {
	return c.Hevy.APIKey != ""
}
