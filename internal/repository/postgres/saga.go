package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/filevault-api/pkg/errors"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"
)

type sagaRepository struct {
	BaseRepository
}

func NewSagaRepository(base BaseRepository) repository.SagaRepository {
	return &sagaRepository{base}
}

func (r *sagaRepository) Create(ctx context.Context, instance *model.SagaInstance) error {
	if instance == nil {
		return fmt.Errorf("instance cannot be nil")
	}

	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	if instance.TraceID == "" {
		instance.TraceID = uuid.New().String()
	}
	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	query := `
		INSERT INTO saga_instances (
			id, saga_type, status, payload, current_step, completed_steps,
			compensation_data, error_message, trace_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		instance.ID,
		instance.SagaType,
		instance.Status,
		instance.Payload,
		instance.CurrentStep,
		instance.CompletedSteps,
		instance.CompensationData,
		instance.ErrorMessage,
		instance.TraceID,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create saga instance: %w", err)
	}
	return nil
}

func (r *sagaRepository) Get(ctx context.Context, id uuid.UUID) (*model.SagaInstance, error) {
	query := `
		SELECT id, saga_type, status, payload, current_step, completed_steps,
			compensation_data, error_message, trace_id, created_at, updated_at
		FROM saga_instances
		WHERE id = $1
	`

	var instance model.SagaInstance
	err := r.db.GetContext(ctx, &instance, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("saga instance", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saga instance: %w", err)
	}
	return &instance, nil
}

// UpdateProgress persists the step cursor, completed set and payload
// after each step so a re-entered execution can skip finished work.
func (r *sagaRepository) UpdateProgress(ctx context.Context, instance *model.SagaInstance) error {
	query := `
		UPDATE saga_instances
		SET current_step = $2,
			completed_steps = $3,
			payload = $4,
			compensation_data = $5,
			updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		instance.ID,
		instance.CurrentStep,
		instance.CompletedSteps,
		instance.Payload,
		instance.CompensationData,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update saga progress: %w", err)
	}
	return nil
}

func (r *sagaRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SagaStatus, errorMessage *string) error {
	query := `
		UPDATE saga_instances
		SET status = $2,
			error_message = COALESCE($3, error_message),
			updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, status, errorMessage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update saga status: %w", err)
	}
	return nil
}
