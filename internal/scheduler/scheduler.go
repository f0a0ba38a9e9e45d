package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/service"
)

// Job schedules, in the configured sync timezone. Provider sync runs
// mid-day and evening; snapshots run on the 12h bucket boundaries.
const (
	syncSchedule     = "0 12,22 * * *"
	snapshotSchedule = "0 0,12 * * *"
)

// Manager owns the two background jobs. It is created once at startup;
// Start is idempotent so a supervisor may call it repeatedly without
// spawning duplicate jobs, and each job runs at most one instance at a
// time.
type Manager struct {
	mu      sync.Mutex
	started bool

	cron    *cron.Cron
	sync    *service.SyncService
	metrics *service.MetricsService
	cfg     config.Config
	logger  *zap.Logger
}

func NewManager(syncSvc *service.SyncService, metrics *service.MetricsService, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	loc, err := time.LoadLocation(cfg.SyncTimezone)
	if err != nil {
		return nil, fmt.Errorf("load sync timezone %q: %w", cfg.SyncTimezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(&cronLogger{logger: logger})),
	)

	return &Manager{
		cron:    c,
		sync:    syncSvc,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Start registers and starts the jobs. Calling it again is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if m.cfg.SyncEnabled {
		if m.cfg.SyncURL != "" && m.cfg.SyncAPIKey != "" {
			if _, err := m.cron.AddFunc(syncSchedule, m.runSync); err != nil {
				return fmt.Errorf("schedule provider sync: %w", err)
			}
		} else {
			m.logger.Warn("provider sync job skipped: missing EXTPAY_SYNC_URL or EXTPAY_API_KEY")
		}
	} else {
		m.logger.Info("provider sync job disabled (EXTPAY_SYNC_ENABLED=false)")
	}

	if _, err := m.cron.AddFunc(snapshotSchedule, m.runSnapshot); err != nil {
		return fmt.Errorf("schedule snapshot capture: %w", err)
	}

	m.cron.Start()
	m.started = true
	m.logger.Info("background jobs started", zap.String("timezone", m.cfg.SyncTimezone))
	return nil
}

// Stop halts scheduling and waits briefly for in-flight jobs; shutdown is
// never blocked indefinitely on a running job.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}

	ctx := m.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		m.logger.Warn("scheduler stopped with jobs still running")
	}
	m.started = false
}

func (m *Manager) runSync() {
	result := m.sync.Run(context.Background())
	if len(result.Errors) > 0 {
		m.logger.Warn("provider sync completed with errors",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Strings("errors", result.Errors),
		)
	}
}

func (m *Manager) runSnapshot() {
	if err := m.metrics.CaptureSnapshot(context.Background()); err != nil {
		m.logger.Error("snapshot capture failed", zap.Error(err))
	}
}

// cronLogger adapts zap to the cron logging interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
