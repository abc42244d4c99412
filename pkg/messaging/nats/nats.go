package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/jwalitptl/filevault-api/pkg/messaging"
)

// Publisher delivers events as NATS messages, using the event type as
// the subject.
type Publisher struct {
	conn *nats.Conn
}

type Config struct {
	URL  string
	Name string
}

func NewPublisher(config Config) (messaging.EventPublisher, error) {
	opts := []nats.Option{nats.Name(config.Name)}
	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	if err := p.conn.Publish(eventType, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}
