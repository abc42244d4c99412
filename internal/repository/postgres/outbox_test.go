package postgres

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/filevault-api/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var outboxColumns = []string{
	"id", "event_type", "payload", "status", "published_at",
	"retry_count", "error_message", "trace_id", "created_at",
}

func TestOutboxCreateFillsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	event := &model.OutboxEvent{
		EventType: "file.uploaded",
		Payload:   []byte(`{"file_id":"f1"}`),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(
			sqlmock.AnyArg(),
			"file.uploaded",
			[]byte(`{"file_id":"f1"}`),
			model.OutboxStatusPending,
			0,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.NotEmpty(t, event.TraceID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, model.OutboxStatusPending, event.Status)
}

func TestOutboxCreateRejectsNilPayload(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	err := repo.Create(context.Background(), &model.OutboxEvent{EventType: "file.uploaded"})
	assert.Error(t, err)
}

func TestOutboxGetPendingEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	id1 := uuid.New()
	id2 := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(outboxColumns).
		AddRow(id1.String(), "file.uploaded", []byte(`{}`), "pending", nil, 0, nil, "t1", now.Add(-time.Minute)).
		AddRow(id2.String(), "file.deleted", []byte(`{}`), "pending", nil, 2, "broker down", "t2", now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1")).
		WithArgs(model.OutboxStatusPending, 50).
		WillReturnRows(rows)

	events, err := repo.GetPendingEvents(context.Background(), 50)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, events, 2)
	assert.Equal(t, id1, events[0].ID)
	assert.Equal(t, id2, events[1].ID)
	assert.Equal(t, 2, events[1].RetryCount)
	require.NotNil(t, events[1].ErrorMessage)
	assert.Equal(t, "broker down", *events[1].ErrorMessage)
}

func TestOutboxMarkPublished(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("published_at = COALESCE(published_at, $3)")).
		WithArgs(id, model.OutboxStatusPublished, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPublished(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkFailedBelowCeilingStaysPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	id := uuid.New()
	rows := sqlmock.NewRows(outboxColumns).
		AddRow(id.String(), "file.uploaded", []byte(`{}`), "pending", nil, 1, "broker down", "t1", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs(id, "broker down", model.MaxOutboxRetries).
		WillReturnRows(rows)

	event, err := repo.MarkFailed(context.Background(), id, "broker down")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, model.OutboxStatusPending, event.Status)
	assert.Equal(t, 1, event.RetryCount)
}

func TestOutboxMarkFailedAtCeilingIsTerminal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	id := uuid.New()
	rows := sqlmock.NewRows(outboxColumns).
		AddRow(id.String(), "file.uploaded", []byte(`{}`), "failed", nil, model.MaxOutboxRetries, "broker down", "t1", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs(id, "broker down", model.MaxOutboxRetries).
		WillReturnRows(rows)

	event, err := repo.MarkFailed(context.Background(), id, "broker down")
	require.NoError(t, err)

	assert.Equal(t, model.OutboxStatusFailed, event.Status)
	assert.Equal(t, model.MaxOutboxRetries, event.RetryCount)
}

func TestOutboxMarkFailedPropagatesError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs(id, "broker down", model.MaxOutboxRetries).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := repo.MarkFailed(context.Background(), id, "broker down")
	assert.ErrorContains(t, err, "connection reset")
}

func TestOutboxDeletePublishedBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(NewBaseRepository(db))

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("WHERE status = 'published'")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := repo.DeletePublishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
}
