package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fleetdash/internal/logger"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      string
		expected string
	}{
		{name: "set", key: "FLEETSIM_TEST_VAR", value: "x", def: "d", expected: "x"},
		{name: "empty falls back", key: "FLEETSIM_TEST_VAR", value: "", def: "d", expected: "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			assert.Equal(t, tt.expected, getenv(tt.key, tt.def))
		})
	}
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, ":3000", s.addr)
		assert.Equal(t, 6, s.robots)
		assert.Zero(t, s.pingDelay)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("FLEETSIM_ADDR", ":4000")
		t.Setenv("FLEETSIM_ROBOTS", "2")
		t.Setenv("FLEETSIM_PING_DELAY", "750ms")

		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, ":4000", s.addr)
		assert.Equal(t, 2, s.robots)
		assert.Equal(t, 750*time.Millisecond, s.pingDelay)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("FLEETSIM_ROBOTS", "-1")
		_, err := loadSettings()
		assert.Error(t, err)

		t.Setenv("FLEETSIM_ROBOTS", "1")
		t.Setenv("FLEETSIM_PING_DELAY", "later")
		_, err = loadSettings()
		assert.Error(t, err)
	})
}

func TestNewSimulator(t *testing.T) {
	sim, err := newSimulator(settings{robots: 4}, logger.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	sim.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/robots", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ids))
	assert.Len(t, ids, 4)

	rec = httptest.NewRecorder()
	sim.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
