package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/repository"
)

type countingUserRepo struct {
	repository.UserRepository
	count int64
}

func (c *countingUserRepo) CountDistinct(ctx context.Context) (int64, error) {
	return c.count, nil
}

type recordingSnapshotRepo struct {
	rows map[string]domain.Snapshot
}

var _ repository.SnapshotRepository = (*recordingSnapshotRepo)(nil)

func newRecordingSnapshotRepo() *recordingSnapshotRepo {
	return &recordingSnapshotRepo{rows: make(map[string]domain.Snapshot)}
}

func (r *recordingSnapshotRepo) Replace(ctx context.Context, snap domain.Snapshot) error {
	r.rows[snap.PeriodKey] = snap
	return nil
}

func (r *recordingSnapshotRepo) Get(ctx context.Context, periodKey string) (domain.Snapshot, error) {
	snap, ok := r.rows[periodKey]
	if !ok {
		return domain.Snapshot{}, repository.ErrNotFound
	}
	return snap, nil
}

func TestPeriodKeyBuckets(t *testing.T) {
	cases := []struct {
		name   string
		in     time.Time
		expect string
	}{
		{"midnight lands in morning bucket", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), "2024-06-15T00:00:00Z"},
		{"just before noon stays morning", time.Date(2024, 6, 15, 11, 59, 59, 0, time.UTC), "2024-06-15T00:00:00Z"},
		{"noon opens the afternoon bucket", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), "2024-06-15T12:00:00Z"},
		{"late evening stays afternoon", time.Date(2024, 6, 15, 23, 30, 0, 0, time.UTC), "2024-06-15T12:00:00Z"},
		{"non-UTC input converts first", time.Date(2024, 6, 15, 20, 0, 0, 0, time.FixedZone("UTC-10", -10*3600)), "2024-06-16T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, PeriodKey(tc.in))
		})
	}
}

func TestCaptureSnapshotReplacesWithinWindow(t *testing.T) {
	users := &countingUserRepo{count: 3}
	snapshots := newRecordingSnapshotRepo()
	svc := NewMetricsService(users, snapshots, zap.NewNop())

	svc.now = func() time.Time { return time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.CaptureSnapshot(context.Background()))

	// A later capture in the same window overwrites the earlier one.
	users.count = 5
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.CaptureSnapshot(context.Background()))

	snap, err := snapshots.Get(context.Background(), "2024-06-15T00:00:00Z")
	require.NoError(t, err)
	assert.EqualValues(t, 5, snap.TotalUsers)
	assert.Equal(t, "2024-06-15T09:00:00Z", snap.CapturedAt)
	assert.Len(t, snapshots.rows, 1)
}

func TestCaptureSnapshotSeparateWindows(t *testing.T) {
	users := &countingUserRepo{count: 2}
	snapshots := newRecordingSnapshotRepo()
	svc := NewMetricsService(users, snapshots, zap.NewNop())

	svc.now = func() time.Time { return time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.CaptureSnapshot(context.Background()))

	svc.now = func() time.Time { return time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.CaptureSnapshot(context.Background()))

	assert.Len(t, snapshots.rows, 2)
}
