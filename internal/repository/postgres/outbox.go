package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

const outboxInsertQuery = `
	INSERT INTO outbox_events (
		id, event_type, payload, status, retry_count, trace_id, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	)
`

func prepareOutboxEvent(event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.TraceID == "" {
		event.TraceID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.Status = model.OutboxStatusPending
	return nil
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if err := prepareOutboxEvent(event); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, outboxInsertQuery,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.TraceID,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// CreateTx inserts the event inside the caller's transaction so the
// event row and the business mutation commit or roll back together.
func (r *outboxRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	if err := prepareOutboxEvent(event); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, outboxInsertQuery,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.TraceID,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents returns up to limit pending events, oldest first.
// Rows are left pending, there is no claim or lock, so a concurrent
// poller may pick up the same batch (at-least-once delivery).
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, published_at, retry_count, error_message, trace_id, created_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return events, err
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $2, published_at = COALESCE(published_at, $3)
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, model.OutboxStatusPublished, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	return nil
}

// MarkFailed increments the retry count and records the error. The
// event stays pending for the next poll cycle until the new retry count
// reaches the ceiling, at which point it becomes terminally failed.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			error_message = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
		RETURNING id, event_type, payload, status, published_at, retry_count, error_message, trace_id, created_at
	`

	var event model.OutboxEvent
	err := r.db.GetContext(ctx, &event, query, id, errorMessage, model.MaxOutboxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to mark event failed: %w", err)
	}
	return &event, nil
}

func (r *outboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, published_at, retry_count, error_message, trace_id, created_at
		FROM outbox_events
		WHERE id = $1
	`

	var event model.OutboxEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// DeletePublishedBefore trims delivered events older than the cutoff.
// Pending and failed rows are never deleted, they are the audit trail.
func (r *outboxRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'published'
		AND published_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", err)
	}

	return result.RowsAffected()
}
