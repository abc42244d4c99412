package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"
)

type idempotencyRepository struct {
	BaseRepository
}

func NewIdempotencyRepository(base BaseRepository) repository.IdempotencyRepository {
	return &idempotencyRepository{base}
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*model.IdempotencyKey, error) {
	query := `
		SELECT key, request_hash, response_status, response_body, expires_at, created_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var entry model.IdempotencyKey
	err := r.db.GetContext(ctx, &entry, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return &entry, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, entry *model.IdempotencyKey) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO idempotency_keys (
			key, request_hash, response_status, response_body, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.Key,
		entry.RequestHash,
		entry.ResponseStatus,
		entry.ResponseBody,
		entry.ExpiresAt,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", err)
	}
	return result.RowsAffected()
}
