package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/echoboardhq/echoboard-segments/internal/repositories"
)

// PurgeManager periodically removes soft-deleted segments past their retention window
type PurgeManager struct {
	segmentRepo *repositories.SegmentRepository
	logger      *slog.Logger
	interval    time.Duration
	retention   time.Duration
	stopCh      chan struct{}
}

// NewPurgeManager creates a new purge manager
func NewPurgeManager(
	segmentRepo *repositories.SegmentRepository,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *PurgeManager {
	return &PurgeManager{
		segmentRepo: segmentRepo,
		logger:      logger,
		interval:    interval,
		retention:   retention,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic purge task
func (pm *PurgeManager) Start(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	pm.runPurge(ctx)

	for {
		select {
		case <-ticker.C:
			pm.runPurge(ctx)
		case <-pm.stopCh:
			pm.logger.Info("purge manager stopped")
			return
		case <-ctx.Done():
			pm.logger.Info("purge manager context cancelled")
			return
		}
	}
}

// runPurge hard-deletes segments soft-deleted before the retention cutoff
func (pm *PurgeManager) runPurge(ctx context.Context) {
	pm.logger.Info("starting deleted segment purge")

	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-pm.retention)
	rowsDeleted, err := pm.segmentRepo.PurgeDeletedBefore(purgeCtx, cutoff)
	if err != nil {
		pm.logger.Error("failed to purge deleted segments", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		pm.logger.Info("deleted segment purge completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the purge manager to stop
func (pm *PurgeManager) Stop() {
	close(pm.stopCh)
}
