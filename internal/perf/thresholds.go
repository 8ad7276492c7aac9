// Package perf implements the in-process request performance monitor.
//
// This file defines the latency bands. A request falls into exactly one band,
// checked from the highest boundary down.
package perf

import (
	"errors"
	"time"
)

// Default latency band boundaries. The slow boundary doubles as the p95 target.
const (
	DefaultSlowThreshold     = 150 * time.Millisecond
	DefaultVerySlowThreshold = 500 * time.Millisecond
	DefaultCriticalThreshold = 1000 * time.Millisecond
)

// ErrInvalidThresholds is returned when band boundaries are not strictly
// positive and ordered slow <= very slow <= critical.
var ErrInvalidThresholds = errors.New("perf: thresholds must satisfy 0 < slow <= very_slow <= critical")

// Band is the latency class a request falls into. Bands are mutually
// exclusive: a critical request is not also slow or very slow.
type Band int

const (
	BandNormal Band = iota
	BandSlow
	BandVerySlow
	BandCritical
)

// String returns the label used in logs and metrics.
func (b Band) String() string {
	switch b {
	case BandSlow:
		return "slow"
	case BandVerySlow:
		return "very_slow"
	case BandCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Thresholds holds the lower (inclusive) boundary of each non-normal band.
type Thresholds struct {
	Slow     time.Duration
	VerySlow time.Duration
	Critical time.Duration
}

// DefaultThresholds returns the 150ms / 500ms / 1s bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Slow:     DefaultSlowThreshold,
		VerySlow: DefaultVerySlowThreshold,
		Critical: DefaultCriticalThreshold,
	}
}

// Validate reports ErrInvalidThresholds for unordered or non-positive bands.
func (t Thresholds) Validate() error {
	if t.Slow <= 0 || t.VerySlow < t.Slow || t.Critical < t.VerySlow {
		return ErrInvalidThresholds
	}
	return nil
}

// Classify places d into exactly one band, checking the highest boundary first.
func (t Thresholds) Classify(d time.Duration) Band {
	switch {
	case d >= t.Critical:
		return BandCritical
	case d >= t.VerySlow:
		return BandVerySlow
	case d >= t.Slow:
		return BandSlow
	default:
		return BandNormal
	}
}

// For returns the lower boundary of band b (zero for BandNormal).
func (t Thresholds) For(b Band) time.Duration {
	switch b {
	case BandSlow:
		return t.Slow
	case BandVerySlow:
		return t.VerySlow
	case BandCritical:
		return t.Critical
	default:
		return 0
	}
}
