// Package status tracks whether the dashboard backend is reachable.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
)

const (
	// DefaultPingTimeout bounds a single liveness ping.
	DefaultPingTimeout = 3 * time.Second
	// DefaultSlowThreshold is how long a ping may run before observers are
	// told the check is taking a while.
	DefaultSlowThreshold = 500 * time.Millisecond
)

// Phase is the prober's position in its probe cycle.
type Phase int

const (
	Idle Phase = iota
	Probing
	ProbingSlow
)

func (p Phase) String() string {
	switch p {
	case Probing:
		return "probing"
	case ProbingSlow:
		return "probing_slow"
	default:
		return "idle"
	}
}

// BackendState is what observers see. Checking is true only while a probe has
// been in flight for longer than the slow threshold.
type BackendState struct {
	Online   bool
	Checking bool
}

// Pinger issues one liveness request. A nil error means the backend answered
// with a 2xx status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober probes backend liveness and publishes the result. It is the only
// writer of its BackendState; any number of goroutines may read it through
// State or Subscribe.
type Prober struct {
	pinger        Pinger
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	timeout       time.Duration
	slowThreshold time.Duration
	onChange      func(BackendState)

	probeMu sync.Mutex // serializes probes

	mu          sync.RWMutex // protects everything below
	phase       Phase
	state       BackendState
	seq         uint64
	lastChecked time.Time
	subscribers map[chan BackendState]struct{}
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout overrides DefaultPingTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// WithSlowThreshold overrides DefaultSlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(p *Prober) { p.slowThreshold = d }
}

// WithLogger sets the prober's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// WithMetrics records probe outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// WithOnChange calls fn after every probe that moved the backend between
// Online and Offline. fn runs on the probing goroutine.
func WithOnChange(fn func(BackendState)) Option {
	return func(p *Prober) { p.onChange = fn }
}

// NewProber creates a prober that starts Idle and Offline.
func NewProber(pinger Pinger, opts ...Option) *Prober {
	p := &Prober{
		pinger:        pinger,
		logger:        logger.Nop(),
		timeout:       DefaultPingTimeout,
		slowThreshold: DefaultSlowThreshold,
		subscribers:   make(map[chan BackendState]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs one liveness check and returns the resulting state. It never
// fails: every error path settles as Offline. Concurrent calls are
// serialized.
//
// Transitions:
//
//	Idle ──probe──► Probing ──slow threshold──► ProbingSlow (Checking=true)
//	  ▲                │                              │
//	  └────settle───────┴──────────settle──────────────┘ (Checking=false)
func (p *Prober) Probe(ctx context.Context) BackendState {
	p.probeMu.Lock()
	defer p.probeMu.Unlock()

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.phase = Probing
	p.mu.Unlock()

	watchdog := time.AfterFunc(p.slowThreshold, func() { p.markSlow(seq) })

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(pingCtx)
	cancel()

	watchdog.Stop()
	return p.settle(err)
}

// markSlow flags the probe identified by seq as slow, unless it already settled.
func (p *Prober) markSlow(seq uint64) {
	p.mu.Lock()
	if p.seq != seq || p.phase != Probing {
		p.mu.Unlock()
		return
	}
	p.phase = ProbingSlow
	p.state.Checking = true
	p.publishLocked()
	p.mu.Unlock()

	p.logger.Info().Msg("Checking backend status...")
}

func (p *Prober) settle(err error) BackendState {
	p.mu.Lock()
	slow := p.phase == ProbingSlow
	wasOnline := p.state.Online
	p.phase = Idle
	p.state = BackendState{Online: err == nil, Checking: false}
	p.lastChecked = time.Now()
	state := p.state
	p.publishLocked()
	p.mu.Unlock()

	p.metrics.ObserveProbe(state.Online, slow)

	switch {
	case err != nil && wasOnline:
		p.logger.Warn().Err(err).Msg("backend went offline")
	case err != nil:
		p.logger.Debug().Err(err).Msg("backend unreachable")
	case !wasOnline:
		p.logger.Info().Msg("backend online")
	}

	if state.Online != wasOnline && p.onChange != nil {
		p.onChange(state)
	}

	return state
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Debug().Dur("interval", interval).Msg("liveness prober started")

	p.Probe(ctx)

	for {
		select {
		case <-ticker.C:
			p.Probe(ctx)
		case <-ctx.Done():
			p.logger.Debug().Msg("liveness prober stopping due to context cancellation")
			return
		}
	}
}

// State returns the current backend state.
func (p *Prober) State() BackendState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Phase returns the current probe phase.
func (p *Prober) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// LastChecked returns when the last probe settled, or the zero time.
func (p *Prober) LastChecked() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastChecked
}

// Subscribe returns a channel that receives every state change and a function
// that cancels the subscription. The channel holds one pending value; a slow
// reader only ever sees the most recent state.
func (p *Prober) Subscribe() (<-chan BackendState, func()) {
	ch := make(chan BackendState, 1)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// publishLocked fans the current state out to subscribers. p.mu must be held
// for writing so that a late watchdog can never overtake a settlement.
func (p *Prober) publishLocked() {
	state := p.state
	for ch := range p.subscribers {
		// drop a stale pending value so the newest state always lands
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}
