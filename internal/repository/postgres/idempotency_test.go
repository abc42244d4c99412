package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/filevault-api/internal/model"
)

var idempotencyColumns = []string{
	"key", "request_hash", "response_status", "response_body", "expires_at", "created_at",
}

func TestIdempotencyGetMissReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("idem-1").
		WillReturnRows(sqlmock.NewRows(idempotencyColumns))

	entry, err := repo.Get(context.Background(), "idem-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestIdempotencyGetReturnsEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(NewBaseRepository(db))

	now := time.Now()
	rows := sqlmock.NewRows(idempotencyColumns).
		AddRow("idem-1", "abc123", 201, []byte(`{"id":"f1"}`), now.Add(time.Hour), now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE key = $1")).
		WithArgs("idem-1").
		WillReturnRows(rows)

	entry, err := repo.Get(context.Background(), "idem-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "idem-1", entry.Key)
	assert.Equal(t, "abc123", entry.RequestHash)
	assert.Equal(t, 201, entry.ResponseStatus)
	assert.JSONEq(t, `{"id":"f1"}`, string(entry.ResponseBody))
}

func TestIdempotencyCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(NewBaseRepository(db))

	entry := &model.IdempotencyKey{
		Key:            "idem-1",
		RequestHash:    "abc123",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"id":"f1"}`),
		ExpiresAt:      time.Now().Add(time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO idempotency_keys")).
		WithArgs("idem-1", "abc123", 201, []byte(`{"id":"f1"}`), entry.ExpiresAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestIdempotencyDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM idempotency_keys WHERE key = $1")).
		WithArgs("idem-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "idem-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(NewBaseRepository(db))

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
