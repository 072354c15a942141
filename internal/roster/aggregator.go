package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
)

// Source is the set of backend reads the aggregator needs. *api.Client
// implements it.
type Source interface {
	FetchRobots(ctx context.Context) ([]string, error)
	FetchOnlineRobots(ctx context.Context) ([]string, error)
	FetchRobot(ctx context.Context, robotUUID string) (api.RobotDetail, error)
	FetchRobotNetwork(ctx context.Context, robotUUID string) (api.NetworkSnapshot, error)
}

var _ Source = (*api.Client)(nil)

// AggregationError wraps the first failure met while building the roster
// view. No partial result accompanies it.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate robots: %v", e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// Aggregator reconciles the roster with the online set.
type Aggregator struct {
	source      Source
	concurrency int
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency sets how many online robots are hydrated at once. Values
// below 1 mean one at a time, in roster order.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithLogger sets the aggregator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics records aggregation results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator returns an Aggregator reading from source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      source,
		concurrency: 1,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	return a
}

// Aggregate returns one entry per roster identifier, in roster order. Robots
// in the online set are hydrated with their detail and network snapshot;
// the rest are Offline and named by their identifier. Online identifiers
// missing from the roster are ignored.
//
// Any failed fetch aborts the whole aggregation with *AggregationError.
func (a *Aggregator) Aggregate(ctx context.Context) ([]Entry, error) {
	start := time.Now()

	entries, err := a.aggregate(ctx)
	if err != nil {
		a.metrics.ObserveAggregation(0, 0, err)
		a.logger.Warn().Err(err).Msg("roster aggregation failed")
		return nil, &AggregationError{Err: err}
	}

	online, offline := Counts(entries)
	a.metrics.ObserveAggregation(online, offline, nil)
	a.logger.Debug().
		Int("online", online).
		Int("offline", offline).
		Dur("elapsed", time.Since(start)).
		Msg("roster aggregated")

	return entries, nil
}

func (a *Aggregator) aggregate(ctx context.Context) ([]Entry, error) {
	robots, onlineSet, err := a.fetchSets(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(robots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, id := range robots {
		if _, ok := onlineSet[id]; !ok {
			entries[i] = Entry{ID: id, View: Offline{Name: id}}
			continue
		}
		if gctx.Err() != nil {
			break
		}
		i, id := i, id
		g.Go(func() error {
			// a slot freed by a failed fetch must not start new work
			if err := gctx.Err(); err != nil {
				return err
			}
			view, err := a.hydrate(gctx, id)
			if err != nil {
				return err
			}
			entries[i] = Entry{ID: id, View: view}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// fetchSets loads the roster and the online set concurrently. The roster is
// returned deduplicated in its original order.
func (a *Aggregator) fetchSets(ctx context.Context) ([]string, map[string]struct{}, error) {
	var robots, online []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		robots, err = a.source.FetchRobots(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		online, err = a.source.FetchOnlineRobots(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	onlineSet := make(map[string]struct{}, len(online))
	for _, id := range online {
		onlineSet[id] = struct{}{}
	}
	return dedupe(robots), onlineSet, nil
}

// Robot returns the view of a single robot without touching the rest of the
// roster. A robot missing from the online set is reported Offline.
func (a *Aggregator) Robot(ctx context.Context, robotUUID string) (Entry, error) {
	online, err := a.source.FetchOnlineRobots(ctx)
	if err != nil {
		return Entry{}, &AggregationError{Err: err}
	}
	for _, id := range online {
		if id != robotUUID {
			continue
		}
		view, err := a.hydrate(ctx, robotUUID)
		if err != nil {
			return Entry{}, &AggregationError{Err: err}
		}
		return Entry{ID: robotUUID, View: view}, nil
	}
	return Entry{ID: robotUUID, View: Offline{Name: robotUUID}}, nil
}

func (a *Aggregator) hydrate(ctx context.Context, id string) (Online, error) {
	detail, err := a.source.FetchRobot(ctx, id)
	if err != nil {
		return Online{}, err
	}
	network, err := a.source.FetchRobotNetwork(ctx, id)
	if err != nil {
		return Online{}, err
	}
	return Online{Name: id, Detail: detail, Network: network}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
