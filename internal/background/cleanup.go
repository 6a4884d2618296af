package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const cleanupRunTimeout = 30 * time.Second

// StaleCleaner removes rate-limit records that can no longer affect a lockout decision
type StaleCleaner interface {
	CleanupStale(ctx context.Context) (int64, error)
}

// CleanupManager periodically prunes stale rate-limit records
type CleanupManager struct {
	cleaner  StaleCleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(cleaner StaleCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the cleanup loop until Stop is called or ctx is cancelled.
// It blocks; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	defer close(cm.doneCh)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, cleanupRunTimeout)
	defer cancel()

	deleted, err := cm.cleaner.CleanupStale(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clean up stale rate limit records", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		cm.logger.Info("rate limit cleanup completed", slog.Int64("records_deleted", deleted))
	}
}

// Stop signals the loop to exit and waits for it. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
	<-cm.doneCh
}
