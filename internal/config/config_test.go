package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout.Std())
	assert.Equal(t, 3*time.Second, cfg.Status.PingTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Status.SlowThreshold.Std())
	assert.Equal(t, 1, cfg.Roster.Concurrency)
	assert.Zero(t, cfg.Cache.MaxAge)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://robots.lan:8080/api
  request_timeout: 4s
status:
  interval: 30s
cache:
  max_age: 15s
roster:
  concurrency: 4
log:
  level: debug
metrics:
  listen: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://robots.lan:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 4*time.Second, cfg.API.RequestTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Status.Interval.Std())
	// untouched keys keep their defaults
	assert.Equal(t, 3*time.Second, cfg.Status.PingTimeout.Std())
	assert.Equal(t, 4, cfg.Roster.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Listen)
	assert.Equal(t, 15*time.Second, cfg.Cache.MaxAge.Std())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://file.lan/api\n")
	t.Setenv(EnvAPIURL, "https://env.lan/api")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMetricsAddr, ":9000")
	t.Setenv(EnvConcurrency, "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.lan/api", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.Metrics.Listen)
	assert.Equal(t, 8, cfg.Roster.Concurrency)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad yaml", body: "api: [", want: "failed to parse config file"},
		{name: "bad duration", body: "api:\n  request_timeout: soon\n", want: "invalid duration"},
		{name: "relative url", body: "api:\n  base_url: /api\n", want: "api.base_url"},
		{name: "zero timeout", body: "status:\n  ping_timeout: 0s\n", want: "status.ping_timeout"},
		{name: "zero concurrency", body: "roster:\n  concurrency: 0\n", want: "roster.concurrency"},
		{name: "zero cache", body: "cache:\n  size: 0\n", want: "cache.size"},
		{name: "negative max age", body: "cache:\n  max_age: -1s\n", want: "cache.max_age"},
		{name: "ping outlasts request", body: "api:\n  request_timeout: 2s\nstatus:\n  ping_timeout: 3s\n", want: "must not exceed api.request_timeout"},
		{name: "bad env concurrency", body: "", env: map[string]string{EnvConcurrency: "many"}, want: EnvConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{D: Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1.5s\n", string(out))
}

func TestGetenv(t *testing.T) {
	t.Setenv("FLEETDASH_TEST_SET", "value")
	t.Setenv("FLEETDASH_TEST_EMPTY", "")

	assert.Equal(t, "value", getenv("FLEETDASH_TEST_SET", "default"))
	assert.Equal(t, "default", getenv("FLEETDASH_TEST_EMPTY", "default"))
	assert.Equal(t, "default", getenv("FLEETDASH_TEST_UNSET", "default"))
}
