// Package dashboard wires the API client, liveness prober, roster
// aggregator, rename action and view cache into the surface a workstation
// front end talks to.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/actions"
	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/config"
	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
	"github.com/dreamware/fleetdash/internal/roster"
	"github.com/dreamware/fleetdash/internal/status"
	"github.com/dreamware/fleetdash/internal/viewcache"
)

const overviewKey = "overview"

// ErrInvalidRobotUUID is returned by Robot for identifiers that are not
// canonical UUIDv4 strings.
var ErrInvalidRobotUUID = actions.ErrInvalidRobotUUID

// Overview is the fleet page: every known robot in roster order.
type Overview struct {
	Entries  []roster.Entry `json:"robots"`
	Online   int            `json:"online"`
	Offline  int            `json:"offline"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// Health is the backend liveness as the status line shows it.
type Health struct {
	Online      bool      `json:"online"`
	Checking    bool      `json:"checking"`
	Phase       string    `json:"phase"`
	LastChecked time.Time `json:"last_checked"`
}

// Dashboard is safe for concurrent use.
type Dashboard struct {
	client     *api.Client
	prober     *status.Prober
	aggregator *roster.Aggregator
	renamer    *actions.Renamer
	cache      *viewcache.Cache
	interval   time.Duration
	logger     zerolog.Logger
}

type options struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zerolog.Logger
}

// Option configures a Dashboard.
type Option func(*options)

// WithHTTPClient sends every backend request through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithMetrics records client, prober, aggregation and cache metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger overrides the component loggers derived from the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// New builds a Dashboard from cfg.
func New(cfg config.Config, opts ...Option) (*Dashboard, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	componentLogger := func(name string) zerolog.Logger {
		if o.logger != nil {
			return o.logger.With().Str("component", name).Logger()
		}
		return logger.WithComponent(name)
	}

	clientOpts := []api.Option{
		api.WithTimeout(cfg.API.RequestTimeout.Std()),
		api.WithLogger(componentLogger("api")),
		api.WithMetrics(o.metrics),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	client := api.NewClient(api.NewEndpoints(cfg.API.BaseURL), clientOpts...)

	cache, err := viewcache.New(cfg.Cache.Size,
		viewcache.WithMaxAge(cfg.Cache.MaxAge.Std()),
		viewcache.WithLogger(componentLogger("viewcache")),
		viewcache.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}

	dashLogger := componentLogger("dashboard")

	return &Dashboard{
		client: client,
		prober: status.NewProber(client,
			status.WithTimeout(cfg.Status.PingTimeout.Std()),
			status.WithSlowThreshold(cfg.Status.SlowThreshold.Std()),
			status.WithLogger(componentLogger("status")),
			status.WithMetrics(o.metrics),
			// views built against the old backend state are not worth keeping
			status.WithOnChange(func(state status.BackendState) {
				dashLogger.Debug().Bool("online", state.Online).Int("dropped", cache.Len()).Msg("backend changed, dropping views")
				cache.Purge()
			}),
		),
		aggregator: roster.NewAggregator(client,
			roster.WithConcurrency(cfg.Roster.Concurrency),
			roster.WithLogger(componentLogger("roster")),
			roster.WithMetrics(o.metrics),
		),
		renamer:  actions.NewRenamer(client, actions.WithLogger(componentLogger("actions"))),
		cache:    cache,
		interval: cfg.Status.Interval.Std(),
		logger:   dashLogger,
	}, nil
}

// Client returns the underlying API client.
func (d *Dashboard) Client() *api.Client {
	return d.client
}

// Overview returns the aggregated fleet. With cache.max_age unset every call
// reloads it from the backend; otherwise a loaded overview is reused until it
// expires, a rename invalidates one of the paths it was built from, or the
// backend goes online or offline.
func (d *Dashboard) Overview(ctx context.Context) (Overview, error) {
	return viewcache.Load(ctx, d.cache, overviewKey, func(ctx context.Context) (Overview, []string, error) {
		entries, err := d.aggregator.Aggregate(ctx)
		if err != nil {
			return Overview{}, nil, err
		}

		deps := []string{api.StatsRobotsPath, api.StatsOnlineRobotsPath}
		for _, e := range entries {
			if e.View.IsOnline() {
				deps = append(deps, api.StatsRobotPath(e.ID), api.StatsRobotNetworkPath(e.ID))
			}
		}

		online, offline := roster.Counts(entries)
		return Overview{
			Entries:  entries,
			Online:   online,
			Offline:  offline,
			LoadedAt: time.Now(),
		}, deps, nil
	})
}

// Robot returns the view of a single robot, cached like Overview.
func (d *Dashboard) Robot(ctx context.Context, robotUUID string) (roster.Entry, error) {
	if !actions.IsUUIDv4(robotUUID) {
		return roster.Entry{}, &api.ValidationError{
			Path:       api.StatsRobotPath(robotUUID),
			Violations: []string{"robot uuid must be a UUIDv4"},
			Err:        ErrInvalidRobotUUID,
		}
	}

	return viewcache.Load(ctx, d.cache, "robot/"+robotUUID, func(ctx context.Context) (roster.Entry, []string, error) {
		entry, err := d.aggregator.Robot(ctx, robotUUID)
		if err != nil {
			return roster.Entry{}, nil, err
		}
		deps := []string{api.StatsOnlineRobotsPath}
		if entry.View.IsOnline() {
			deps = append(deps, api.StatsRobotPath(robotUUID), api.StatsRobotNetworkPath(robotUUID))
		}
		return entry, deps, nil
	})
}

// Rename renames a robot and, on success, evicts every cached view that read
// the robot or the online set.
func (d *Dashboard) Rename(ctx context.Context, robotUUID, newName string) error {
	if err := d.renamer.RenameRobot(ctx, robotUUID, newName); err != nil {
		return err
	}

	evicted := d.cache.InvalidateMany(actions.InvalidationKeysFor(robotUUID))
	d.logger.Debug().Str("robot", robotUUID).Int("evicted", evicted).Int("cached", d.cache.Len()).Msg("views invalidated after rename")
	return nil
}

// Probe runs one liveness check.
func (d *Dashboard) Probe(ctx context.Context) status.BackendState {
	return d.prober.Probe(ctx)
}

// Status returns the last known backend state.
func (d *Dashboard) Status() status.BackendState {
	return d.prober.State()
}

// Health returns the last known backend state with the prober's phase and
// when it last settled. LastChecked is zero before the first probe.
func (d *Dashboard) Health() Health {
	state := d.prober.State()
	return Health{
		Online:      state.Online,
		Checking:    state.Checking,
		Phase:       d.prober.Phase().String(),
		LastChecked: d.prober.LastChecked(),
	}
}

// Subscribe streams backend state changes until cancel is called.
func (d *Dashboard) Subscribe() (<-chan status.BackendState, func()) {
	return d.prober.Subscribe()
}

// Run probes the backend on the configured interval until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) {
	d.prober.Run(ctx, d.interval)
}
