package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/filevault-api/internal/repository"
	"github.com/jwalitptl/filevault-api/pkg/logger"
)

// OutboxRetentionWorker trims published outbox rows older than the
// retention window. Pending and failed rows are kept forever as the
// delivery audit trail.
type OutboxRetentionWorker struct {
	repo          repository.OutboxRepository
	retentionDays int
	sweepInterval time.Duration
	logger        *logger.Logger
}

func NewOutboxRetentionWorker(repo repository.OutboxRepository, retentionDays int, sweepInterval time.Duration, logger *logger.Logger) *OutboxRetentionWorker {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &OutboxRetentionWorker{
		repo:          repo,
		retentionDays: retentionDays,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

func (w *OutboxRetentionWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 {
		// Retention disabled, keep everything.
		return
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
			count, err := w.repo.DeletePublishedBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error(err, "Failed to trim published outbox events")
				continue
			}
			if count > 0 {
				w.logger.Info("Trimmed published outbox events", "count", count)
			}
		}
	}
}
