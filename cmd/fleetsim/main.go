// Package main runs a simulated robot backend for working on the dashboard
// without real robots.
//
// Configuration:
//   - FLEETSIM_ADDR: Listen address (default: ":3000")
//   - FLEETSIM_ROBOTS: Number of generated robots (default: 6)
//   - FLEETSIM_PING_DELAY: Delay added to every ping, e.g. "750ms" (default: none)
//   - FLEETSIM_LOG_LEVEL: zerolog level (default: "info")
//
// Example usage:
//
//	FLEETSIM_ROBOTS=10 ./fleetsim
//	curl localhost:3000/api/stats/robots
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/fleetsim"
	"github.com/dreamware/fleetdash/internal/logger"
)

// logFatal is a variable to allow intercepting fatal errors in tests.
var logFatal = func(format string, v ...any) {
	l := logger.GetLogger()
	l.Fatal().Msgf(format, v...)
}

type settings struct {
	addr      string
	robots    int
	pingDelay time.Duration
	logLevel  string
}

func loadSettings() (settings, error) {
	s := settings{
		addr:     getenv("FLEETSIM_ADDR", ":3000"),
		logLevel: getenv("FLEETSIM_LOG_LEVEL", "info"),
	}

	n, err := strconv.Atoi(getenv("FLEETSIM_ROBOTS", "6"))
	if err != nil || n < 0 {
		return s, errors.New("FLEETSIM_ROBOTS must be a non-negative integer")
	}
	s.robots = n

	if v := os.Getenv("FLEETSIM_PING_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, err
		}
		s.pingDelay = d
	}
	return s, nil
}

// newSimulator seeds a fleet and returns the server exposing it.
func newSimulator(s settings, log zerolog.Logger) (*fleetsim.Server, error) {
	store := fleetsim.NewMemoryStore()
	robots, err := fleetsim.Seed(store, s.robots)
	if err != nil {
		return nil, err
	}
	for _, r := range robots {
		log.Info().Str("robot", r.UUID).Str("name", r.Name).Bool("online", r.Online).Msg("robot registered")
	}

	srv := fleetsim.NewServer(store, fleetsim.WithServerLogger(log))
	srv.SetPingDelay(s.pingDelay)
	return srv, nil
}

func main() {
	s, err := loadSettings()
	if err != nil {
		logFatal("config: %v", err)
		return
	}
	if err := logger.Init(logger.Config{Level: s.logLevel}); err != nil {
		logFatal("logger: %v", err)
		return
	}
	log := logger.WithComponent("fleetsim")

	sim, err := newSimulator(s, log)
	if err != nil {
		logFatal("seed: %v", err)
		return
	}

	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", s.addr).Msg("fleet simulator listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Msg("fleet simulator stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
