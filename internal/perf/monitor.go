// Package perf implements the in-process request performance monitor.
//
// This file provides Monitor, the facade the HTTP layer talks to. A Monitor
// owns one Aggregator, one Alerter and the monitoring scope; it is built once
// at startup and injected into the middleware and the read API handlers.
// There is no package-level state, so tests build as many monitors as they
// need.
//
// Request flow:
//
//	Skip(method, path)        decided before any timer starts
//	Observe(Sample)           record under the lock, then log outside it
//	  -> Aggregator.Record    counters + window, O(1) under the mutex
//	  -> Alerter.Evaluate     per-band log line, degradation warning
//	  -> digest               every ReportingInterval requests
//	Stats()                   snapshot under the lock, sort outside it
//
// Usage:
//
//	m, err := perf.New(perf.DefaultConfig(),
//	    perf.WithLogger(log.Logger),
//	    perf.WithProbe(perf.RuntimeProbe{}),
//	)
//	if err != nil { ... }
//	r.Use(middleware.Performance(m))
//
// Failure semantics: monitoring is advisory. Observe recovers its own panics
// and never reports an error to the request path.
package perf

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the monitor configuration. Zero values fall back to defaults,
// except Scope, which is used as given. Digests are switched off with
// Alerts.DisableDigests, never by a zero interval.
type Config struct {
	Thresholds Thresholds
	WindowSize int
	Alerts     AlertConfig
	Scope      ScopeConfig
}

// DefaultConfig returns the 150/500/1000ms bands, a 1000-sample window, a
// digest every 100 requests, a 5% slow-share alert, and the default scope.
func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		WindowSize: DefaultWindowSize,
		Alerts: AlertConfig{
			ReportingInterval: DefaultReportingInterval,
			SlowPercentAlert:  DefaultSlowPercentAlert,
		},
		Scope: DefaultScopeConfig(),
	}
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger routes alerts and digests to lg.
func WithLogger(lg zerolog.Logger) Option {
	return func(m *Monitor) { m.log = lg }
}

// WithProbe sets the resource probe used by the interceptor.
func WithProbe(p ResourceProbe) Option {
	return func(m *Monitor) {
		if p != nil {
			m.probe = p
		}
	}
}

// WithDigestQueue forwards every digest to q.
func WithDigestQueue(q *DigestQueue) Option {
	return func(m *Monitor) { m.queue = q }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor is the process-wide request performance monitor. Build one at
// startup and inject it into the HTTP middleware and the stats handlers.
type Monitor struct {
	cfg    Config
	agg    *Aggregator
	alerts *Alerter
	scope  *Scope
	probe  ResourceProbe
	queue  *DigestQueue
	log    zerolog.Logger
	now    func() time.Time
}

// New validates cfg and returns a ready monitor.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("perf: new monitor: %w", err)
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Alerts.SlowPercentAlert < 0 {
		return nil, fmt.Errorf("perf: new monitor: slow percent alert must be >= 0, got %v", cfg.Alerts.SlowPercentAlert)
	}
	if cfg.Alerts.SlowPercentAlert == 0 {
		cfg.Alerts.SlowPercentAlert = DefaultSlowPercentAlert
	}
	if cfg.Alerts.ReportingInterval == 0 {
		cfg.Alerts.ReportingInterval = DefaultReportingInterval
	}

	m := &Monitor{
		cfg:   cfg,
		scope: NewScope(cfg.Scope),
		probe: NopProbe{},
		log:   log.Logger,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.agg = NewAggregator(cfg.Thresholds, cfg.WindowSize)
	m.agg.now = m.now
	m.alerts = NewAlerter(m.log.With().Str("component", "perfmon").Logger(), cfg.Thresholds, cfg.Alerts)
	return m, nil
}

// Thresholds returns the configured latency bands.
func (m *Monitor) Thresholds() Thresholds { return m.cfg.Thresholds }

// Skip reports whether the request bypasses monitoring.
func (m *Monitor) Skip(method, path string) bool { return m.scope.Skip(method, path) }

// Probe returns the resource probe.
func (m *Monitor) Probe() ResourceProbe { return m.probe }

// Observe records s, evaluates alerts, and emits a digest on reporting
// boundaries. It never panics.
func (m *Monitor) Observe(s Sample) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Error().Interface("panic", rec).Str("request_id", s.RequestID).Msg("perfmon observe failed")
		}
	}()

	rec := m.agg.Record(s.Elapsed)
	m.alerts.Evaluate(s, rec)

	if !m.alerts.DigestDue(rec.Counters) {
		return
	}
	// Under concurrency the snapshot may already include requests recorded
	// after the boundary; it is still internally consistent.
	d := BuildDigest(m.agg.Snapshot(), m.cfg.Thresholds)
	m.alerts.Report(d)
	if m.queue != nil {
		m.queue.Enqueue(d)
	}
}

// Counters returns the current band counters.
func (m *Monitor) Counters() Counters { return m.agg.Counters() }

// Stats computes the read API view. The window is copied under the lock and
// sorted outside it.
func (m *Monitor) Stats() Stats {
	s := m.agg.Snapshot()
	return BuildDigest(s, m.cfg.Thresholds).Stats(s.Counters)
}

// Reset clears counters and window.
func (m *Monitor) Reset() { m.agg.Reset() }
