// Package perf implements the in-process request performance monitor.
//
// This file holds the shared mutable state: the band Counters and the
// sliding Window, both guarded by one mutex. Everything that needs sorting,
// formatting or I/O works on a Snapshot copied out of the lock.
package perf

import (
	"sync"
	"time"
)

// Counters are the process-lifetime request tallies. Total is incremented for
// every recorded request; at most one band counter moves per request, so
// Slow+VerySlow+Critical <= Total always holds.
type Counters struct {
	Total    uint64 `json:"total"`
	Slow     uint64 `json:"slow"`
	VerySlow uint64 `json:"very_slow"`
	Critical uint64 `json:"critical"`
}

// Percent returns 100*n/Total, or 0 when nothing has been recorded.
func (c Counters) Percent(n uint64) float64 {
	if c.Total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(c.Total)
}

// Recorded is what a single Record call observed, captured under the lock.
type Recorded struct {
	Elapsed  time.Duration
	Band     Band
	Counters Counters // post-increment values
}

// Snapshot is a consistent copy of counters and window contents.
type Snapshot struct {
	Counters Counters
	Window   []time.Duration // insertion order, oldest first
	TakenAt  time.Time
}

// Aggregator accumulates band counters and the sliding window behind a single
// mutex. Lock hold time is O(1): one increment and one ring push per Record.
// Snapshot copies under the lock and leaves sorting to the caller.
//
// Aggregator is safe for concurrent use.
type Aggregator struct {
	thresholds Thresholds
	now        func() time.Time

	mu       sync.Mutex
	counters Counters
	window   *Window
}

// NewAggregator returns an empty aggregator with the given bands and window
// capacity.
func NewAggregator(t Thresholds, windowSize int) *Aggregator {
	return &Aggregator{
		thresholds: t,
		now:        time.Now,
		window:     NewWindow(windowSize),
	}
}

// Thresholds returns the configured bands.
func (a *Aggregator) Thresholds() Thresholds { return a.thresholds }

// Record counts one request of duration elapsed.
func (a *Aggregator) Record(elapsed time.Duration) Recorded {
	band := a.thresholds.Classify(elapsed)

	a.mu.Lock()
	a.counters.Total++
	switch band {
	case BandCritical:
		a.counters.Critical++
	case BandVerySlow:
		a.counters.VerySlow++
	case BandSlow:
		a.counters.Slow++
	}
	a.window.Push(elapsed)
	c := a.counters
	a.mu.Unlock()

	return Recorded{Elapsed: elapsed, Band: band, Counters: c}
}

// Counters returns a copy of the current counters.
func (a *Aggregator) Counters() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters
}

// Snapshot copies counters and window under the lock.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	s := Snapshot{Counters: a.counters, Window: a.window.Snapshot()}
	a.mu.Unlock()
	s.TakenAt = a.now()
	return s
}

// WindowCap reports the sliding window capacity.
func (a *Aggregator) WindowCap() int { return a.window.Cap() }

// Reset zeroes the counters and empties the window.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.counters = Counters{}
	a.window.Reset()
	a.mu.Unlock()
}
