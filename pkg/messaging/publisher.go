package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// EventPublisher delivers outbox events to an external consumer. The
// host application supplies an implementation; delivery is at-least-once
// and consumers must tolerate duplicates.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
	Close() error
}

// LogPublisher is the fallback used when no real publisher is
// configured. It logs the event and reports success, so events still
// move to published instead of piling up as pending.
type LogPublisher struct {
	logger *zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	p.logger.Info().
		Str("event_type", eventType).
		RawJSON("payload", payload).
		Msg("No event publisher configured, event logged only")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
