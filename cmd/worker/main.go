package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/filevault-api/internal/config"
	"github.com/jwalitptl/filevault-api/internal/repository/postgres"
	idempotencyService "github.com/jwalitptl/filevault-api/internal/service/idempotency"
	outboxService "github.com/jwalitptl/filevault-api/internal/service/outbox"
	internalWorker "github.com/jwalitptl/filevault-api/internal/worker"
	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/messaging"
	natsPublisher "github.com/jwalitptl/filevault-api/pkg/messaging/nats"
	redisPublisher "github.com/jwalitptl/filevault-api/pkg/messaging/redis"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
	"github.com/jwalitptl/filevault-api/pkg/worker"
)

// Standalone delivery process: runs the outbox poller plus the
// retention and idempotency sweeps, for deployments that separate event
// delivery from the API. Running more than one instance against the
// same store is safe but yields duplicate publishes, delivery is
// at-least-once.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)
	idempotencyRepo := postgres.NewIdempotencyRepository(baseRepo)

	m := metrics.New("filevault_worker", prometheus.DefaultRegisterer)

	publisher := buildPublisher(cfg.Publisher, appLogger)
	defer publisher.Close()

	outboxSvc := outboxService.NewService(outboxRepo, &baseRepo)
	idempotencySvc := idempotencyService.NewService(idempotencyRepo, appLogger, m)

	processor := worker.NewOutboxProcessor(outboxSvc, publisher, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
	}, appLogger, m)
	retention := internalWorker.NewOutboxRetentionWorker(outboxRepo, cfg.Outbox.RetentionDays, 0, appLogger)
	sweeper := internalWorker.NewIdempotencyCleanupWorker(idempotencySvc, cfg.Idempotency.SweepInterval, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	go retention.Start(ctx)
	go sweeper.Start(ctx)
	processor.Start(ctx)
}

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func buildPublisher(cfg config.PublisherConfig, appLogger *logger.Logger) messaging.EventPublisher {
	switch cfg.Kind {
	case "redis":
		p, err := redisPublisher.NewPublisher(redisPublisher.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &appLogger.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Redis publisher")
		}
		return p
	case "nats":
		p, err := natsPublisher.NewPublisher(natsPublisher.Config{
			URL:  cfg.NATS.URL,
			Name: cfg.NATS.Name,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create NATS publisher")
		}
		return p
	default:
		return messaging.NewLogPublisher(&appLogger.ZL)
	}
}
