package fleetsim

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/logger"
)

// maxBodyBytes bounds request bodies accepted by the action endpoints.
const maxBodyBytes = 64 << 10

// Server serves the robot backend API over a Store.
type Server struct {
	r         *chi.Mux
	store     Store
	logger    zerolog.Logger
	pingDelay atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer returns a Server with every route mounted under /api.
func NewServer(store Store, opts ...ServerOption) *Server {
	s := &Server{r: chi.NewRouter(), store: store, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	s.r.Use(middleware.RequestID)
	s.r.Use(s.requestLogger)
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.r.Route("/api", func(r chi.Router) {
		r.Get(api.PingPath, s.handlePing)

		r.Get(api.StatsRobotsPath, s.handleRobots)
		r.Get(api.StatsOnlineRobotsPath, s.handleOnlineRobots)
		r.Get("/stats/robot/{uuid}", s.handleRobot)
		r.Get("/stats/robot/{uuid}/network", s.handleRobotNetwork)

		r.Post(api.ActionSetRobotNamePath, s.handleSetRobotName)

		// simulator controls
		r.Get("/sim/stats", s.handleStats)
		r.Put("/sim/robot/{uuid}/online", s.handleSetOnline)
		r.Delete("/sim/robot/{uuid}", s.handleRemove)
		r.Put("/sim/ping_delay", s.handlePingDelay)
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.r }

// SetPingDelay delays every ping response by d.
func (s *Server) SetPingDelay(d time.Duration) {
	s.pingDelay.Store(int64(d))
}

// GET /api/ping
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(s.pingDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "pong")
}

// GET /api/stats/robots
func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.List(), http.StatusOK)
}

// GET /api/stats/online_robots
func (s *Server) handleOnlineRobots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Online(), http.StatusOK)
}

// GET /api/stats/robot/{uuid}
func (s *Server) handleRobot(w http.ResponseWriter, r *http.Request) {
	robot, err := s.store.Get(chi.URLParam(r, "uuid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !robot.Online {
		writeStoreError(w, ErrRobotOffline)
		return
	}
	writeJSON(w, robot.Detail(), http.StatusOK)
}

// GET /api/stats/robot/{uuid}/network
func (s *Server) handleRobotNetwork(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Network(chi.URLParam(r, "uuid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, snapshot, http.StatusOK)
}

// POST /api/action/set_robot_name
func (s *Server) handleSetRobotName(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if violations := api.SetRobotNameShape.CheckBytes(raw); len(violations) > 0 {
		http.Error(w, strings.Join(violations, "; "), http.StatusBadRequest)
		return
	}

	var req api.SetRobotNameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.store.Rename(req.RobotUUID, req.NewRobotName); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Info().Str("robot", req.RobotUUID).Str("name", req.NewRobotName).Msg("robot renamed")
	w.WriteHeader(http.StatusOK)
}

// GET /api/sim/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Stats(), http.StatusOK)
}

// PUT /api/sim/robot/{uuid}/online  body: {"online":true}
func (s *Server) handleSetOnline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.store.SetOnline(chi.URLParam(r, "uuid"), body.Online); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/sim/robot/{uuid}
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	robotUUID := chi.URLParam(r, "uuid")
	if _, err := s.store.Get(robotUUID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.Remove(robotUUID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("robot", robotUUID).Msg("robot removed")
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/sim/ping_delay  body: {"delay":"750ms"}
func (s *Server) handlePingDelay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delay string `json:"delay"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(body.Delay)
	if err != nil || d < 0 {
		http.Error(w, "delay must be a non-negative duration", http.StatusBadRequest)
		return
	}
	s.SetPingDelay(d)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRobotNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrRobotOffline):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
