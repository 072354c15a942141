// Package metrics exposes Prometheus instrumentation for the dashboard client.
// All collectors live on a private registry so that several clients (and
// tests) can coexist in one process without duplicate registration panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport"
	OutcomeSchema     = "schema"
	OutcomeValidation = "validation"
)

// Metrics holds all the Prometheus collectors for the dashboard client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Probes           *prometheus.CounterVec
	BackendOnline    prometheus.Gauge
	Aggregations     *prometheus.CounterVec
	AggregatedRobots *prometheus.GaugeVec
	Invalidations    prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdash_requests_total",
			Help: "Backend requests issued, by method and outcome",
		}, []string{"method", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetdash_request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
		Probes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdash_liveness_probes_total",
			Help: "Liveness probes, by outcome and whether the slow watchdog fired",
		}, []string{"outcome", "slow"}),
		BackendOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetdash_backend_online",
			Help: "1 if the last liveness probe succeeded",
		}),
		Aggregations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdash_aggregations_total",
			Help: "Roster aggregations, by result",
		}, []string{"result"}),
		AggregatedRobots: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetdash_robots",
			Help: "Robots in the last successful aggregation, by state",
		}, []string{"state"}),
		Invalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetdash_view_invalidations_total",
			Help: "Cached views evicted by invalidation",
		}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend request.
func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveProbe records a settled liveness probe.
func (m *Metrics) ObserveProbe(online, slow bool) {
	if m == nil {
		return
	}
	outcome := "offline"
	if online {
		outcome = "online"
		m.BackendOnline.Set(1)
	} else {
		m.BackendOnline.Set(0)
	}
	m.Probes.WithLabelValues(outcome, boolLabel(slow)).Inc()
}

// ObserveAggregation records an aggregation result. online and offline are
// ignored when err is non-nil.
func (m *Metrics) ObserveAggregation(online, offline int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Aggregations.WithLabelValues("failure").Inc()
		return
	}
	m.Aggregations.WithLabelValues("success").Inc()
	m.AggregatedRobots.WithLabelValues("online").Set(float64(online))
	m.AggregatedRobots.WithLabelValues("offline").Set(float64(offline))
}

// AddInvalidations counts evicted views.
func (m *Metrics) AddInvalidations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Invalidations.Add(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
