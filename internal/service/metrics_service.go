package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/repository"
)

// MetricsService records twice-daily distinct-user counts for trend
// metrics.
type MetricsService struct {
	users     repository.UserRepository
	snapshots repository.SnapshotRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewMetricsService(users repository.UserRepository, snapshots repository.SnapshotRepository, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		users:     users,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
}

// PeriodKey buckets a point in time into its 12-hour window. Boundaries
// sit at 00:00 and 12:00 UTC.
func PeriodKey(t time.Time) string {
	utc := t.UTC()
	hour := 0
	if utc.Hour() >= 12 {
		hour = 12
	}
	return fmt.Sprintf("%sT%02d:00:00Z", utc.Format("2006-01-02"), hour)
}

// CaptureSnapshot counts distinct users and writes the snapshot for the
// current period, replacing any earlier capture in the same window.
func (s *MetricsService) CaptureSnapshot(ctx context.Context) error {
	now := s.now()
	key := PeriodKey(now)

	total, err := s.users.CountDistinct(ctx)
	if err != nil {
		return fmt.Errorf("snapshot user count: %w", err)
	}

	if err := s.snapshots.Replace(ctx, domain.Snapshot{
		PeriodKey:  key,
		TotalUsers: total,
		CapturedAt: now.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	s.logger.Info("user count snapshot recorded",
		zap.String("period_key", key),
		zap.Int64("total_users", total),
	)
	return nil
}
