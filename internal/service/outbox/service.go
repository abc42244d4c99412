package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"
)

// Service appends domain events to the outbox and exposes the poller
// side of the contract. Delivery itself happens asynchronously in
// pkg/worker.
type Service struct {
	repo repository.OutboxRepository
	tx   repository.TxRunner
}

func NewService(repo repository.OutboxRepository, tx repository.TxRunner) *Service {
	return &Service{
		repo: repo,
		tx:   tx,
	}
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// Append inserts a pending event that commits independently of any
// business transaction. Producers that need atomicity use AppendTx or
// RunInTransaction instead.
func (s *Service) Append(ctx context.Context, eventType string, payload interface{}, traceID string) (*model.OutboxEvent, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
		TraceID:   traceID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// AppendTx inserts a pending event inside the caller's transaction.
func (s *Service) AppendTx(ctx context.Context, tx *sqlx.Tx, eventType string, payload interface{}, traceID string) (*model.OutboxEvent, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
		TraceID:   traceID,
	}
	if err := s.repo.CreateTx(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// RunInTransaction opens one transaction, appends the outbox row and
// runs businessFn inside it. The event and the business mutation commit
// or roll back together.
func (s *Service) RunInTransaction(ctx context.Context, eventType string, payload interface{}, businessFn func(*sqlx.Tx) error) (*model.OutboxEvent, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, event); err != nil {
			return err
		}
		return businessFn(tx)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Poll returns up to batchSize pending events in creation order. Events
// stay pending; callers must MarkPublished or MarkFailed each one.
func (s *Service) Poll(ctx context.Context, batchSize int) ([]*model.OutboxEvent, error) {
	return s.repo.GetPendingEvents(ctx, batchSize)
}

func (s *Service) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkPublished(ctx, id)
}

func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (*model.OutboxEvent, error) {
	return s.repo.MarkFailed(ctx, id, errorMessage)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.OutboxEvent, error) {
	return s.repo.GetByID(ctx, id)
}
