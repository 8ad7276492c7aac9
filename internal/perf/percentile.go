// Package perf implements the in-process request performance monitor: a
// bounded sliding window of recent latencies, mutually exclusive latency band
// counters, nearest-rank percentile estimation, and threshold-based alerting
// with a periodic statistical digest.
//
// This file holds the pure statistics helpers. They never mutate their input;
// callers pass a snapshot copied out of the Aggregator.
package perf

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Percentile returns the nearest-rank percentile p (a fraction in (0,1]) of
// values. An empty input yields the zero value.
//
// The rank is ceil(p*n)-1 clamped to [0, n-1], so the result is always one of
// the observed values (no interpolation). For example the 0.95 percentile of
// [10 20 30 40 50] is 50.
func Percentile[T cmp.Ordered](values []T, p float64) T {
	var zero T
	if len(values) == 0 {
		return zero
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[rank(len(sorted), p)]
}

// Percentiles answers several ranks from a single sort. The result is indexed
// like ps.
func Percentiles[T cmp.Ordered](values []T, ps ...float64) []T {
	out := make([]T, len(ps))
	if len(values) == 0 {
		return out
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for i, p := range ps {
		out[i] = sorted[rank(len(sorted), p)]
	}
	return out
}

// rank maps fraction p onto a 0-based nearest-rank index for n sorted values.
func rank(n int, p float64) int {
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// Mean returns the arithmetic mean of ds, or 0 for an empty slice.
func Mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
