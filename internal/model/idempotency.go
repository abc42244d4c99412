package model

import (
	"encoding/json"
	"time"
)

// IdempotencyKey caches the outcome of a previously seen client token
// so a retried request can be answered without re-running side effects.
type IdempotencyKey struct {
	Key            string          `db:"key" json:"key"`
	RequestHash    string          `db:"request_hash" json:"request_hash"`
	ResponseStatus int             `db:"response_status" json:"response_status"`
	ResponseBody   json.RawMessage `db:"response_body" json:"response_body"`
	ExpiresAt      time.Time       `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Expired reports whether the entry should be treated as absent.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
