package web

import (
	"context"
	"fmt"
	"time"

	"nomadmatch/config"

	"go.uber.org/zap"
)

// LookupPruner deletes lookup log rows older than a cutoff.
type LookupPruner interface {
	DeleteLookupsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService enforces the lookup log retention window.
type CleanupService struct {
	lookups LookupPruner
	logger  *zap.Logger
	now     func() time.Time
}

// NewCleanupService creates a new cleanup service instance
func NewCleanupService(lookups LookupPruner, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		lookups: lookups,
		logger:  logger,
		now:     time.Now,
	}
}

// CleanupStaleLookups deletes lookups older than maxAge and returns how many
// rows were removed.
func (cs *CleanupService) CleanupStaleLookups(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoffTime := cs.now().Add(-maxAge)

	cs.logger.Debug("Starting stale lookup cleanup",
		zap.Time("cutoff_time", cutoffTime),
		zap.Duration("max_age", maxAge))

	deleted, err := cs.lookups.DeleteLookupsBefore(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale lookups: %w", err)
	}

	if deleted > 0 {
		cs.logger.Info("Stale lookup cleanup completed", zap.Int64("lookups_deleted", deleted))
	}
	return deleted, nil
}

// StartLookupCleanup runs CleanupStaleLookups every CleanupInterval until ctx
// is cancelled. It returns immediately when cleanup is disabled.
func StartLookupCleanup(ctx context.Context, cfg *config.Config, cs *CleanupService, logger *zap.Logger) {
	if !cfg.CleanupEnabled || cfg.CleanupInterval <= 0 || cfg.LookupRetentionAge <= 0 {
		logger.Info("Lookup cleanup disabled")
		return
	}

	logger.Info("Lookup cleanup scheduled",
		zap.Duration("interval", cfg.CleanupInterval),
		zap.Duration("retention", cfg.LookupRetentionAge))

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := cs.CleanupStaleLookups(runCtx, cfg.LookupRetentionAge); err != nil {
			logger.Error("Lookup cleanup failed", zap.Error(err))
		}
	}

	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
