package perf

import "time"

// Stats is the read-side view of the monitor, served by the stats endpoint
// and scraped by the Prometheus collector. Durations are in milliseconds.
type Stats struct {
	TotalRequests         uint64    `json:"total_requests" example:"1050"`
	AverageResponseTime   float64   `json:"average_response_time_ms" example:"42.5"`
	P95ResponseTime       float64   `json:"p95_response_time_ms" example:"120"`
	P99ResponseTime       float64   `json:"p99_response_time_ms" example:"310"`
	SlowRequestCount      uint64    `json:"slow_request_count" example:"12"`
	VerySlowRequestCount  uint64    `json:"very_slow_request_count" example:"3"`
	CriticalRequestCount  uint64    `json:"critical_request_count" example:"1"`
	SlowRequestPercentage float64   `json:"slow_request_percentage" example:"1.14"`
	P95Target             float64   `json:"p95_target_ms" example:"150"`
	P95TargetMet          bool      `json:"p95_target_met" example:"true"`
	WindowSize            int       `json:"window_size" example:"1000"`
	LastUpdated           time.Time `json:"last_updated"`
}

// Digest is the periodic statistical report computed every reporting interval.
type Digest struct {
	TakenAt       time.Time
	TotalRequests uint64
	WindowSize    int
	Average       time.Duration
	P95           time.Duration
	P99           time.Duration
	SlowPct       float64
	VerySlowPct   float64
	CriticalPct   float64
	P95Target     time.Duration
	P95TargetMet  bool
}

// BuildDigest computes a digest from s. It sorts s.Window's copy and never
// touches shared state.
func BuildDigest(s Snapshot, t Thresholds) Digest {
	ps := Percentiles(s.Window, 0.95, 0.99)
	c := s.Counters
	return Digest{
		TakenAt:       s.TakenAt,
		TotalRequests: c.Total,
		WindowSize:    len(s.Window),
		Average:       Mean(s.Window),
		P95:           ps[0],
		P99:           ps[1],
		SlowPct:       c.Percent(c.Slow),
		VerySlowPct:   c.Percent(c.VerySlow),
		CriticalPct:   c.Percent(c.Critical),
		P95Target:     t.Slow,
		P95TargetMet:  ps[0] <= t.Slow,
	}
}

// Stats converts the digest into the read API shape.
func (d Digest) Stats(c Counters) Stats {
	return Stats{
		TotalRequests:         c.Total,
		AverageResponseTime:   millis(d.Average),
		P95ResponseTime:       millis(d.P95),
		P99ResponseTime:       millis(d.P99),
		SlowRequestCount:      c.Slow,
		VerySlowRequestCount:  c.VerySlow,
		CriticalRequestCount:  c.Critical,
		SlowRequestPercentage: d.SlowPct,
		P95Target:             millis(d.P95Target),
		P95TargetMet:          d.P95TargetMet,
		WindowSize:            d.WindowSize,
		LastUpdated:           d.TakenAt,
	}
}
