package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/filevault-api/internal/service/idempotency"
)

// HeaderIdempotencyKey is the client-supplied token header.
const HeaderIdempotencyKey = "Idempotency-Key"

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func isMutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// Idempotency short-circuits repeated mutating requests that carry the
// same client token. The first occurrence runs the handler and, on a
// successful response, caches {status, body}; repeats are answered from
// cache without re-executing side effects. Requests without a token or
// with a non-mutating verb bypass the cache entirely.
func Idempotency(svc *idempotency.Service, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		requestHash := svc.GenerateRequestHash(requestBody, c.Request.Header)

		result, err := svc.CheckDuplicate(c.Request.Context(), key, requestHash)
		if err != nil {
			// Degrade to normal handling rather than failing the
			// request on a cache error.
			log.Error().Err(err).Str("idempotency_key", key).Msg("Idempotency check failed")
			c.Next()
			return
		}

		if result.IsDuplicate {
			c.Header("Idempotent-Replayed", "true")
			c.Data(result.ResponseStatus, "application/json; charset=utf-8", result.ResponseBody)
			c.Abort()
			return
		}

		writer := &bodyCaptureWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		if err := svc.StoreResponse(c.Request.Context(), key, requestHash, status, writer.body.Bytes(), ttl); err != nil {
			log.Error().Err(err).Str("idempotency_key", key).Msg("Failed to store idempotent response")
		}
	}
}
