package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-perf-monitor/internal/domain"
	"github.com/tbourn/go-perf-monitor/internal/perf"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// DigestStore persists performance digests and serves their history. It
// implements perf.DigestSink.
type DigestStore struct {
	db   *gorm.DB
	keep int
}

var _ perf.DigestSink = (*DigestStore)(nil)

// NewDigestStore returns a store that keeps at most keep digests after each
// save. keep <= 0 keeps everything.
func NewDigestStore(db *gorm.DB, keep int) *DigestStore {
	return &DigestStore{db: db, keep: keep}
}

// SaveDigest inserts d and applies the retention limit.
func (s *DigestStore) SaveDigest(ctx context.Context, d perf.Digest) error {
	row := digestRow(d)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("repo: save digest: %w", err)
	}
	if s.keep > 0 {
		if _, err := s.PruneDigests(ctx, s.keep); err != nil {
			return err
		}
	}
	return nil
}

// ListDigests returns up to limit digests, newest first. limit <= 0 returns all.
func (s *DigestStore) ListDigests(ctx context.Context, limit int) ([]domain.Digest, error) {
	var out []domain.Digest
	q := s.db.WithContext(ctx).Order("taken_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("repo: list digests: %w", err)
	}
	return out, nil
}

// GetDigest fetches one digest by id, or ErrNotFound.
func (s *DigestStore) GetDigest(ctx context.Context, id string) (*domain.Digest, error) {
	var d domain.Digest
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDigests returns the number of stored digests.
func (s *DigestStore) CountDigests(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Digest{}).Count(&n).Error
	return n, err
}

// PruneDigests deletes all but the keep newest digests and returns the number
// of rows removed.
func (s *DigestStore) PruneDigests(ctx context.Context, keep int) (int64, error) {
	db := s.db.WithContext(ctx)
	var res *gorm.DB
	if keep <= 0 {
		res = db.Where("1 = 1").Delete(&domain.Digest{})
	} else {
		newest := db.Model(&domain.Digest{}).Select("id").Order("taken_at DESC, id DESC").Limit(keep)
		res = db.Where("id NOT IN (?)", newest).Delete(&domain.Digest{})
	}
	if res.Error != nil {
		return 0, fmt.Errorf("repo: prune digests: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func digestRow(d perf.Digest) *domain.Digest {
	taken := d.TakenAt
	if taken.IsZero() {
		taken = time.Now()
	}
	return &domain.Digest{
		ID:            uuid.NewString(),
		TakenAt:       taken.UTC(),
		TotalRequests: d.TotalRequests,
		WindowSize:    d.WindowSize,
		AvgMs:         ms(d.Average),
		P95Ms:         ms(d.P95),
		P99Ms:         ms(d.P99),
		SlowPct:       d.SlowPct,
		VerySlowPct:   d.VerySlowPct,
		CriticalPct:   d.CriticalPct,
		P95TargetMs:   ms(d.P95Target),
		P95TargetMet:  d.P95TargetMet,
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
