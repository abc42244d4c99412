package idempotency

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
)

type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	entries map[string]*model.IdempotencyKey
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{entries: make(map[string]*model.IdempotencyKey)}
}

func (r *fakeIdempotencyRepo) Get(ctx context.Context, key string) (*model.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeIdempotencyRepo) Create(ctx context.Context, entry *model.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.Key] = &copied
	return nil
}

func (r *fakeIdempotencyRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *fakeIdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for key, entry := range r.entries {
		if now.After(entry.ExpiresAt) {
			delete(r.entries, key)
			count++
		}
	}
	return count, nil
}

func testService(repo *fakeIdempotencyRepo) *Service {
	lg := logger.NewLogger(&logger.Config{Output: io.Discard})
	return NewService(repo, lg, metrics.New("test", prometheus.NewRegistry()))
}

func TestGenerateRequestHashDeterministic(t *testing.T) {
	svc := testService(newFakeIdempotencyRepo())

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	h1 := svc.GenerateRequestHash([]byte(`{"name":"report.pdf"}`), headers)
	h2 := svc.GenerateRequestHash([]byte(`{"name":"report.pdf"}`), headers)
	assert.Equal(t, h1, h2)

	h3 := svc.GenerateRequestHash([]byte(`{"name":"other.pdf"}`), headers)
	assert.NotEqual(t, h1, h3)

	headers.Set("Content-Type", "application/xml")
	h4 := svc.GenerateRequestHash([]byte(`{"name":"report.pdf"}`), headers)
	assert.NotEqual(t, h1, h4)
}

func TestCheckDuplicateUnknownKey(t *testing.T) {
	svc := testService(newFakeIdempotencyRepo())

	result, err := svc.CheckDuplicate(context.Background(), "tok-1", "hash")
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
}

func TestStoreThenCheckDuplicate(t *testing.T) {
	svc := testService(newFakeIdempotencyRepo())
	ctx := context.Background()

	require.NoError(t, svc.StoreResponse(ctx, "tok-1", "hash-a", 201, []byte(`{"id":"f1"}`), 0))

	result, err := svc.CheckDuplicate(ctx, "tok-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, 201, result.ResponseStatus)
	assert.JSONEq(t, `{"id":"f1"}`, string(result.ResponseBody))
}

func TestCheckDuplicateHashMismatchStillServed(t *testing.T) {
	svc := testService(newFakeIdempotencyRepo())
	ctx := context.Background()

	require.NoError(t, svc.StoreResponse(ctx, "tok-1", "hash-a", 200, []byte(`{"id":"f1"}`), 0))

	// Same token, different request content: still answered from
	// cache, the mismatch is tolerated.
	result, err := svc.CheckDuplicate(ctx, "tok-1", "hash-b")
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, 200, result.ResponseStatus)
}

func TestCheckDuplicateExpiredEntryRemoved(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	svc := testService(repo)
	ctx := context.Background()

	repo.Create(ctx, &model.IdempotencyKey{
		Key:            "tok-1",
		RequestHash:    "hash-a",
		ResponseStatus: 200,
		ResponseBody:   []byte(`{}`),
		ExpiresAt:      time.Now().Add(-time.Minute),
	})

	result, err := svc.CheckDuplicate(ctx, "tok-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)

	stored, err := repo.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "expired entry should be deleted lazily")
}

func TestCleanupExpired(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	svc := testService(repo)
	ctx := context.Background()

	repo.Create(ctx, &model.IdempotencyKey{Key: "old-1", ExpiresAt: time.Now().Add(-time.Hour)})
	repo.Create(ctx, &model.IdempotencyKey{Key: "old-2", ExpiresAt: time.Now().Add(-time.Minute)})
	repo.Create(ctx, &model.IdempotencyKey{Key: "live", ExpiresAt: time.Now().Add(time.Hour)})

	count, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	stored, err := repo.Get(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, stored)
}
