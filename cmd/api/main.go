package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/filevault-api/internal/config"
	"github.com/jwalitptl/filevault-api/internal/handler"
	healthHandler "github.com/jwalitptl/filevault-api/internal/handler/health"
	sagaHandler "github.com/jwalitptl/filevault-api/internal/handler/saga"
	"github.com/jwalitptl/filevault-api/internal/repository/postgres"
	"github.com/jwalitptl/filevault-api/internal/router"
	idempotencyService "github.com/jwalitptl/filevault-api/internal/service/idempotency"
	outboxService "github.com/jwalitptl/filevault-api/internal/service/outbox"
	sagaService "github.com/jwalitptl/filevault-api/internal/service/saga"
	internalWorker "github.com/jwalitptl/filevault-api/internal/worker"
	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/messaging"
	natsPublisher "github.com/jwalitptl/filevault-api/pkg/messaging/nats"
	redisPublisher "github.com/jwalitptl/filevault-api/pkg/messaging/redis"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
	"github.com/jwalitptl/filevault-api/pkg/worker"
)

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

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)
	sagaRepo := postgres.NewSagaRepository(baseRepo)
	idempotencyRepo := postgres.NewIdempotencyRepository(baseRepo)

	m := metrics.New("filevault", prometheus.DefaultRegisterer)

	publisher := buildPublisher(cfg.Publisher, appLogger)
	defer func() {
		if publisher != nil {
			publisher.Close()
		}
	}()

	// Services
	outboxSvc := outboxService.NewService(outboxRepo, &baseRepo)
	idempotencySvc := idempotencyService.NewService(idempotencyRepo, appLogger, m)

	// Saga workflow definitions are registered here by the embedding
	// application before any StartSaga call, e.g.:
	//
	//	registry.Register(&sagaService.Definition{Name: "file.replicate", Steps: ...})
	registry := sagaService.NewRegistry()
	pool := worker.NewPool(cfg.Saga.WorkerCount, cfg.Saga.QueueDepth, appLogger)
	orchestrator := sagaService.NewOrchestrator(registry, sagaRepo, pool, appLogger, m)

	// Background workers
	processor := worker.NewOutboxProcessor(outboxSvc, publisher, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
	}, appLogger, m)
	sweeper := internalWorker.NewIdempotencyCleanupWorker(idempotencySvc, cfg.Idempotency.SweepInterval, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)
	go sweeper.Start(ctx)

	// Router
	r := router.NewRouter(
		router.Config{
			RateLimit:      rate.Limit(cfg.Server.RateLimit),
			RateBurst:      cfg.Server.RateBurst,
			IdempotencyTTL: cfg.Idempotency.TTL,
		},
		idempotencySvc,
		handler.NewHandler(),
		healthHandler.NewHandler(db),
		sagaHandler.NewHandler(orchestrator),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// Drain in-flight saga executions before exiting.
	pool.Stop()
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
