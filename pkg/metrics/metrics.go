package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox related metrics
	OutboxEventsPublished   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Saga related metrics
	SagasStarted   prometheus.Counter
	SagasFinished  *prometheus.CounterVec
	SagaStepErrors *prometheus.CounterVec

	// Idempotency related metrics
	IdempotencyHits    prometheus.Counter
	IdempotencyStores  prometheus.Counter
	IdempotencySwept   prometheus.Counter
	IdempotencyHashWar prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all application metrics against reg.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration panics.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OutboxEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox publish attempts that failed",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing one outbox poll batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		SagasStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sagas_started_total",
			Help:      "Total number of saga instances started",
		}),
		SagasFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sagas_finished_total",
			Help:      "Total number of saga instances reaching a terminal status",
		}, []string{"status"}),
		SagaStepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_step_errors_total",
			Help:      "Total number of saga step failures",
		}, []string{"saga_type"}),

		IdempotencyHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_duplicate_hits_total",
			Help:      "Total number of requests short-circuited from the idempotency cache",
		}),
		IdempotencyStores: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_responses_stored_total",
			Help:      "Total number of responses stored in the idempotency cache",
		}),
		IdempotencySwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_keys_swept_total",
			Help:      "Total number of expired idempotency keys removed by the sweeper",
		}),
		IdempotencyHashWar: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_hash_mismatch_total",
			Help:      "Total number of duplicate tokens replayed with a different request hash",
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
