package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/service/outbox"

	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/messaging"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// OutboxProcessor is the timer-driven poller: every tick it fetches a
// batch of pending events, hands each to the publisher and records the
// outcome. One event's failure never blocks the rest of the batch and
// never terminates the loop.
type OutboxProcessor struct {
	svc       *outbox.Service
	publisher messaging.EventPublisher
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewOutboxProcessor(
	svc *outbox.Service,
	publisher messaging.EventPublisher,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if publisher == nil {
		// Explicit fallback, not a failure: events are logged and
		// still marked published so they do not pile up as pending.
		publisher = messaging.NewLogPublisher(&logger.ZL)
		logger.Warn("No event publisher configured, outbox degrades to log-only delivery")
	}

	return &OutboxProcessor{
		svc:       svc,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.svc.Poll(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("poll_pending_events", "error").Inc()
		return fmt.Errorf("failed to poll pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("poll_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"trace_id", event.TraceID)
			continue
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.publisher.Publish(ctx, event.EventType, event.Payload); err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()

		updated, markErr := p.svc.MarkFailed(ctx, event.ID, err.Error())
		if markErr != nil {
			p.logger.Error(markErr, "Failed to update event status", "event_id", event.ID.String())
			return err
		}
		if updated.Status == model.OutboxStatusFailed {
			p.logger.Error(err, "Event exhausted retries, marked failed",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", updated.RetryCount)
		}
		return err
	}

	if err := p.svc.MarkPublished(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to mark event published", "event_id", event.ID.String())
		return err
	}

	p.metrics.OutboxEventsPublished.Inc()
	return nil
}
