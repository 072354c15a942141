// Package config loads the dashboard client configuration from a YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/status"
	"github.com/dreamware/fleetdash/internal/viewcache"
)

// Environment variables that override file values.
const (
	EnvAPIURL      = "FLEETDASH_API_URL"
	EnvLogLevel    = "FLEETDASH_LOG_LEVEL"
	EnvMetricsAddr = "FLEETDASH_METRICS_ADDR"
	EnvConcurrency = "FLEETDASH_ROSTER_CONCURRENCY"
)

// Config is the complete client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Status  StatusConfig  `yaml:"status"`
	Roster  RosterConfig  `yaml:"roster"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     logger.Config `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig locates the fleet backend.
type APIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// StatusConfig tunes the backend liveness checks. PingTimeout must not exceed
// the API request timeout, which bounds every request including pings.
type StatusConfig struct {
	PingTimeout   Duration `yaml:"ping_timeout"`
	SlowThreshold Duration `yaml:"slow_threshold"`
	Interval      Duration `yaml:"interval"`
}

// RosterConfig controls how the fleet overview is assembled.
type RosterConfig struct {
	// Concurrency is the number of online robots hydrated at once.
	Concurrency int `yaml:"concurrency"`
}

// CacheConfig bounds the loaded-view cache.
type CacheConfig struct {
	Size int `yaml:"size"`
	// MaxAge is how long a loaded view may be shown again; zero reloads
	// every view from the backend on each request.
	MaxAge Duration `yaml:"max_age"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for the Prometheus endpoint; empty disables it.
	Listen string `yaml:"listen"`
}

// Duration is a time.Duration that unmarshals from strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        api.DefaultBaseURL,
			RequestTimeout: Duration(api.DefaultRequestTimeout),
		},
		Status: StatusConfig{
			PingTimeout:   Duration(status.DefaultPingTimeout),
			SlowThreshold: Duration(status.DefaultSlowThreshold),
			Interval:      Duration(10 * time.Second),
		},
		Roster: RosterConfig{Concurrency: 1},
		Cache:  CacheConfig{Size: viewcache.DefaultSize},
		Log:    logger.Config{Level: "info", Output: "stderr"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.API.BaseURL = getenv(EnvAPIURL, c.API.BaseURL)
	c.Log.Level = getenv(EnvLogLevel, c.Log.Level)
	c.Metrics.Listen = getenv(EnvMetricsAddr, c.Metrics.Listen)

	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Roster.Concurrency = n
	}
	return nil
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL))
	}
	if c.API.RequestTimeout <= 0 {
		errs = append(errs, errors.New("api.request_timeout must be positive"))
	}
	if c.Status.PingTimeout <= 0 {
		errs = append(errs, errors.New("status.ping_timeout must be positive"))
	}
	if c.Status.PingTimeout > c.API.RequestTimeout {
		errs = append(errs, fmt.Errorf("status.ping_timeout %s must not exceed api.request_timeout %s",
			c.Status.PingTimeout.Std(), c.API.RequestTimeout.Std()))
	}
	if c.Status.SlowThreshold <= 0 {
		errs = append(errs, errors.New("status.slow_threshold must be positive"))
	}
	if c.Status.Interval <= 0 {
		errs = append(errs, errors.New("status.interval must be positive"))
	}
	if c.Roster.Concurrency < 1 {
		errs = append(errs, errors.New("roster.concurrency must be at least 1"))
	}
	if c.Cache.Size < 1 {
		errs = append(errs, errors.New("cache.size must be at least 1"))
	}
	if c.Cache.MaxAge < 0 {
		errs = append(errs, errors.New("cache.max_age must not be negative"))
	}

	return errors.Join(errs...)
}

// getenv returns the environment variable's value or def when it is unset
// or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
