// Package domain defines the persistence models of the performance monitor.
// These types are mapped with GORM.
package domain

import "time"

// Digest is one persisted performance digest: a point-in-time summary of the
// sliding window taken on a reporting boundary.
//
// Latencies are stored in milliseconds, percentages in [0,100].
type Digest struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	TakenAt       time.Time `json:"taken_at"        gorm:"not null;index:idx_digest_taken"`
	TotalRequests uint64    `json:"total_requests"  gorm:"not null"`
	WindowSize    int       `json:"window_size"     gorm:"not null"`
	AvgMs         float64   `json:"avg_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	SlowPct       float64   `json:"slow_pct"`
	VerySlowPct   float64   `json:"very_slow_pct"`
	CriticalPct   float64   `json:"critical_pct"`
	P95TargetMs   float64   `json:"p95_target_ms"`
	P95TargetMet  bool      `json:"p95_target_met"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Digest.
func (Digest) TableName() string { return "perf_digests" }
