package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/filevault-api/internal/model"
	apperrors "github.com/jwalitptl/filevault-api/pkg/errors"
)

var sagaColumns = []string{
	"id", "saga_type", "status", "payload", "current_step", "completed_steps",
	"compensation_data", "error_message", "trace_id", "created_at", "updated_at",
}

func TestSagaCreateFillsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSagaRepository(NewBaseRepository(db))

	instance := &model.SagaInstance{
		SagaType:       "file_upload",
		Status:         model.SagaStatusInProgress,
		Payload:        model.JSONMap{"file_id": "f1"},
		CompletedSteps: pq.Int64Array{},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_instances")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), instance))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEqual(t, uuid.Nil, instance.ID)
	assert.NotEmpty(t, instance.TraceID)
	assert.False(t, instance.CreatedAt.IsZero())
	assert.Equal(t, instance.CreatedAt, instance.UpdatedAt)
}

func TestSagaGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSagaRepository(NewBaseRepository(db))

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(sagaColumns).
		AddRow(id.String(), "file_upload", "in_progress", []byte(`{"file_id":"f1"}`),
			1, "{0}", []byte(`{}`), nil, "t1", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances")).
		WithArgs(id).
		WillReturnRows(rows)

	instance, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, instance.ID)
	assert.Equal(t, "file_upload", instance.SagaType)
	assert.Equal(t, model.SagaStatusInProgress, instance.Status)
	assert.Equal(t, "f1", instance.Payload["file_id"])
	assert.Equal(t, pq.Int64Array{0}, instance.CompletedSteps)
}

func TestSagaGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSagaRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_instances")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(sagaColumns))

	_, err := repo.Get(context.Background(), id)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestSagaUpdateProgress(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSagaRepository(NewBaseRepository(db))

	id := uuid.New()
	instance := &model.SagaInstance{
		ID:               id,
		CurrentStep:      2,
		CompletedSteps:   pq.Int64Array{0, 1},
		Payload:          model.JSONMap{"file_id": "f1"},
		CompensationData: model.JSONMap{},
	}

	mock.ExpectExec(regexp.QuoteMeta("SET current_step = $2")).
		WithArgs(id, 2, instance.CompletedSteps, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(context.Background(), instance))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSagaUpdateStatusKeepsExistingError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSagaRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("error_message = COALESCE($3, error_message)")).
		WithArgs(id, model.SagaStatusCompensated, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), id, model.SagaStatusCompensated, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
