package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
	ContextTraceID   = "trace_id"
)

// RequestID adds a unique request ID to each request. The same value
// doubles as the trace id stamped on outbox events and saga instances
// started from the request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request ID exists in header
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Set(ContextTraceID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

// TraceID returns the trace id for the current request, empty when the
// RequestID middleware did not run.
func TraceID(c *gin.Context) string {
	return c.GetString(ContextTraceID)
}
