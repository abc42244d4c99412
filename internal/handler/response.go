package handler

// Response is the envelope for API payloads. Error responses carry the
// trace id so a caller can correlate with outbox events and saga
// instances written under the same trace.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message, traceID string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
		TraceID: traceID,
	}
}
