package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/filevault-api/internal/service/idempotency"
	"github.com/jwalitptl/filevault-api/pkg/logger"
)

// IdempotencyCleanupWorker periodically removes expired idempotency
// keys. Lazy deletion on lookup handles hot keys; this sweep catches
// the rest.
type IdempotencyCleanupWorker struct {
	svc           *idempotency.Service
	sweepInterval time.Duration
	logger        *logger.Logger
}

func NewIdempotencyCleanupWorker(svc *idempotency.Service, sweepInterval time.Duration, logger *logger.Logger) *IdempotencyCleanupWorker {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}
	return &IdempotencyCleanupWorker{
		svc:           svc,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

func (w *IdempotencyCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := w.svc.CleanupExpired(ctx)
			if err != nil {
				w.logger.Error(err, "Failed to sweep expired idempotency keys")
				continue
			}
			if count > 0 {
				w.logger.Info("Removed expired idempotency keys", "count", count)
			}
		}
	}
}
