// Package perf implements the in-process request performance monitor.
//
// This file implements Alerter, which turns recorded samples into log lines
// at graduated severity:
//
//	critical  -> error  "critical request"
//	very slow -> warn   "very slow request"
//	slow      -> info   "slow request"
//	normal    -> debug  "request timed"
//
// It also emits the cumulative "performance degradation" warning when the
// slow share exceeds SlowPercentAlert, and logs the periodic digest with a
// "p95 target missed" warning when p95 exceeds the slow threshold.
//
// Alerter holds no aggregate state; it only reads what Record returned.
package perf

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default alerting parameters.
const (
	DefaultReportingInterval = 100
	DefaultSlowPercentAlert  = 5.0
)

// Sample is one measured request. It is discarded once observed; only
// Elapsed reaches the aggregate state.
type Sample struct {
	RequestID string
	Endpoint  string // "METHOD route", for logs only
	Status    int
	Start     time.Time
	Elapsed   time.Duration
	Resources ResourceDelta
	Canceled  bool
	Panicked  bool
}

// AlertConfig tunes the Alerter.
type AlertConfig struct {
	// ReportingInterval emits a digest whenever Total is a multiple of it.
	// Zero selects DefaultReportingInterval.
	ReportingInterval uint64
	// DisableDigests turns the periodic digest off regardless of
	// ReportingInterval.
	DisableDigests bool
	// SlowPercentAlert is the slow-band share (in percent) above which a
	// degradation warning is logged. Zero selects DefaultSlowPercentAlert.
	SlowPercentAlert float64
	// DegradationLogInterval throttles the degradation warning. Zero logs it
	// on every qualifying request.
	DegradationLogInterval time.Duration
}

// Alerter turns recorded samples into log records at graduated severity. It
// holds no aggregate state of its own.
type Alerter struct {
	log        zerolog.Logger
	thresholds Thresholds
	cfg        AlertConfig
	degrade    *rate.Limiter
}

// NewAlerter builds an Alerter writing to lg.
func NewAlerter(lg zerolog.Logger, t Thresholds, cfg AlertConfig) *Alerter {
	a := &Alerter{log: lg, thresholds: t, cfg: cfg}
	if cfg.DegradationLogInterval > 0 {
		a.degrade = rate.NewLimiter(rate.Every(cfg.DegradationLogInterval), 1)
	}
	return a
}

// DigestDue reports whether the post-increment total lands on a reporting
// boundary.
func (a *Alerter) DigestDue(c Counters) bool {
	if a.cfg.DisableDigests || a.cfg.ReportingInterval == 0 {
		return false
	}
	return c.Total > 0 && c.Total%a.cfg.ReportingInterval == 0
}

// Evaluate logs the per-request signal for s and the cumulative degradation
// warning. Panics are swallowed.
func (a *Alerter) Evaluate(s Sample, r Recorded) {
	defer func() { _ = recover() }()

	a.logBand(s, r.Band)

	if r.Counters.Total == 0 {
		return
	}
	slowPct := r.Counters.Percent(r.Counters.Slow)
	if slowPct <= a.cfg.SlowPercentAlert {
		return
	}
	if a.degrade != nil && !a.degrade.Allow() {
		return
	}
	a.log.Warn().
		Str("request_id", s.RequestID).
		Float64("slow_pct", slowPct).
		Float64("alert_pct", a.cfg.SlowPercentAlert).
		Int64("elapsed_ms", s.Elapsed.Milliseconds()).
		Uint64("total_requests", r.Counters.Total).
		Msg("performance degradation")
}

func (a *Alerter) logBand(s Sample, b Band) {
	var ev *zerolog.Event
	msg := "request timed"
	switch b {
	case BandCritical:
		ev, msg = a.log.Error(), "critical request"
	case BandVerySlow:
		ev, msg = a.log.Warn(), "very slow request"
	case BandSlow:
		ev, msg = a.log.Info(), "slow request"
	default:
		ev = a.log.Debug()
	}
	if ev == nil {
		return // level disabled
	}
	ev = ev.
		Str("request_id", s.RequestID).
		Str("endpoint", s.Endpoint).
		Int("status", s.Status).
		Int64("elapsed_ms", s.Elapsed.Milliseconds()).
		Str("band", b.String())
	if b != BandNormal {
		ev = ev.Int64("threshold_ms", a.thresholds.For(b).Milliseconds())
	}
	if s.Resources.Supported {
		ev = ev.Int64("memory_delta_bytes", s.Resources.MemoryBytes).
			Uint64("gc_cycles", s.Resources.GCCycles)
	}
	if s.Canceled {
		ev = ev.Bool("canceled", true)
	}
	if s.Panicked {
		ev = ev.Bool("panicked", true)
	}
	ev.Msg(msg)
}

// Report logs a digest and, when p95 misses the slow threshold, a target-miss
// warning. Panics are swallowed.
func (a *Alerter) Report(d Digest) {
	defer func() { _ = recover() }()

	a.log.Info().
		Uint64("total_requests", d.TotalRequests).
		Int("window_size", d.WindowSize).
		Float64("avg_ms", millis(d.Average)).
		Float64("p95_ms", millis(d.P95)).
		Float64("p99_ms", millis(d.P99)).
		Float64("slow_pct", d.SlowPct).
		Float64("very_slow_pct", d.VerySlowPct).
		Float64("critical_pct", d.CriticalPct).
		Msg("performance digest")

	if !d.P95TargetMet {
		a.log.Warn().
			Float64("p95_ms", millis(d.P95)).
			Float64("target_ms", millis(d.P95Target)).
			Uint64("total_requests", d.TotalRequests).
			Msg("p95 target missed")
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
