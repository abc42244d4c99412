package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"

	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
)

// DefaultTTL is applied when StoreResponse is called without an
// explicit TTL.
const DefaultTTL = time.Hour

// hashedHeaders is the allow-list of headers folded into the request
// hash alongside the body.
var hashedHeaders = []string{"Content-Type"}

// Result is the outcome of a duplicate check.
type Result struct {
	IsDuplicate    bool
	ResponseStatus int
	ResponseBody   json.RawMessage
}

// Service caches responses to requests carrying a client idempotency
// token. The relational table is the source of truth; an in-process
// lookaside cache absorbs repeat lookups for hot tokens.
type Service struct {
	repo    repository.IdempotencyRepository
	local   *gocache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.IdempotencyRepository, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		local:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger:  logger,
		metrics: metrics,
	}
}

// GenerateRequestHash produces a deterministic hash over the request
// body and the header allow-list. Used only to detect a token being
// replayed against a different request; a mismatch is never rejected.
func (s *Service) GenerateRequestHash(body []byte, headers http.Header) string {
	h := sha256.New()
	h.Write(body)
	for _, name := range hashedHeaders {
		h.Write([]byte(strings.ToLower(name)))
		h.Write([]byte(headers.Get(name)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CheckDuplicate reports whether key has been seen before. Expired
// entries are deleted lazily and reported as absent. A stored entry
// with a different request hash is still served from cache; the
// mismatch is only logged.
func (s *Service) CheckDuplicate(ctx context.Context, key, requestHash string) (*Result, error) {
	entry, ok := s.lookup(ctx, key)
	if !ok {
		return &Result{}, nil
	}

	now := time.Now()
	if entry == nil {
		return &Result{}, nil
	}
	if entry.Expired(now) {
		s.local.Delete(key)
		if err := s.repo.Delete(ctx, key); err != nil {
			s.logger.Error(err, "Failed to delete expired idempotency key", "key", key)
		}
		return &Result{}, nil
	}

	if entry.RequestHash != requestHash {
		s.metrics.IdempotencyHashWar.Inc()
		s.logger.Warn("Idempotency token replayed with different request content",
			"key", key)
	}

	s.metrics.IdempotencyHits.Inc()
	return &Result{
		IsDuplicate:    true,
		ResponseStatus: entry.ResponseStatus,
		ResponseBody:   entry.ResponseBody,
	}, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*model.IdempotencyKey, bool) {
	if cached, found := s.local.Get(key); found {
		entry, _ := cached.(*model.IdempotencyKey)
		return entry, entry != nil
	}

	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		s.logger.Error(err, "Failed to look up idempotency key", "key", key)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	s.local.Set(key, entry, time.Until(entry.ExpiresAt))
	return entry, true
}

// StoreResponse records a response under the token. Callers only invoke
// this for non-error outcomes (status < 400).
func (s *Service) StoreResponse(ctx context.Context, key, requestHash string, status int, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	entry := &model.IdempotencyKey{
		Key:            key,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
		ExpiresAt:      time.Now().Add(ttl),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return err
	}

	s.local.Set(key, entry, ttl)
	s.metrics.IdempotencyStores.Inc()
	return nil
}

// CleanupExpired bulk-deletes expired entries. Run on a periodic
// schedule by the sweep worker.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.metrics.IdempotencySwept.Add(float64(count))
		s.logger.Debug("Swept expired idempotency keys", "count", count)
	}
	return count, nil
}
