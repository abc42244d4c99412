package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/filevault-api/pkg/circuitbreaker"
	"github.com/jwalitptl/filevault-api/pkg/messaging"
)

// Publisher delivers events to a Redis pub/sub channel per event type.
type Publisher struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewPublisher(config Config, logger *zerolog.Logger) (messaging.EventPublisher, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-publisher",
		MaxRequests: 100,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
	})

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{
		client: client,
		cb:     cb,
		logger: logger,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	return p.cb.Execute(func() error {
		return p.client.Publish(ctx, eventType, payload).Err()
	})
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
