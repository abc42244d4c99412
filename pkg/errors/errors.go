package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrConflict
	ErrInternal
	ErrUnknownSagaType
)

// ErrSagaTypeNotRegistered is returned by StartSaga when no definition
// exists for the requested saga type. A configuration error, distinct
// from a runtime step failure.
var ErrSagaTypeNotRegistered = &AppError{
	Code:    ErrUnknownSagaType,
	Message: "saga type not registered",
}

// IsUnknownSagaType reports whether err wraps ErrSagaTypeNotRegistered.
func IsUnknownSagaType(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrUnknownSagaType
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewUnknownSagaType(sagaType string) *AppError {
	return &AppError{
		Code:    ErrUnknownSagaType,
		Message: fmt.Sprintf("saga type %q not registered", sagaType),
		Err:     ErrSagaTypeNotRegistered,
	}
}
