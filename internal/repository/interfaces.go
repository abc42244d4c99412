package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/filevault-api/internal/model"
)

// All repository interfaces in one file
type (
	// OutboxRepository persists and mutates outbox events. Rows are
	// created by producers (inside a business transaction when a tx is
	// supplied) and mutated only by the poller.
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkPublished(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (*model.OutboxEvent, error)
		GetByID(ctx context.Context, id uuid.UUID) (*model.OutboxEvent, error)
		DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// SagaRepository persists saga instances across step boundaries.
	SagaRepository interface {
		Create(ctx context.Context, instance *model.SagaInstance) error
		Get(ctx context.Context, id uuid.UUID) (*model.SagaInstance, error)
		UpdateProgress(ctx context.Context, instance *model.SagaInstance) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.SagaStatus, errorMessage *string) error
	}

	// IdempotencyRepository stores cached responses keyed by client token.
	IdempotencyRepository interface {
		Get(ctx context.Context, key string) (*model.IdempotencyKey, error)
		Create(ctx context.Context, entry *model.IdempotencyKey) error
		Delete(ctx context.Context, key string) error
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}

	// TxRunner opens a transaction and runs fn inside it, committing on
	// nil error and rolling back otherwise.
	TxRunner interface {
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	}
)
