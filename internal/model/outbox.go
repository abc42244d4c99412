package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the attempt ceiling. MarkFailed leaves an event
// pending until its retry count reaches this value, then marks it
// terminally failed.
const MaxOutboxRetries = 5

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	PublishedAt  *time.Time      `db:"published_at" json:"published_at,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	TraceID      string          `db:"trace_id" json:"trace_id"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
