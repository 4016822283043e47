package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific failure class of the notes engine.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters (empty
	// content, malformed context name, out-of-range paging values).
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the operation targets a missing note or context.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeBackendUnavailable indicates a database connection or extension failure.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// ErrCodeEmbeddingProvider indicates the embedding provider failed.
	// Non-fatal: callers persist the note without a vector and retry later.
	ErrCodeEmbeddingProvider ErrorCode = "EMBEDDING_PROVIDER"
	// ErrCodeContextCanceled indicates the operation was canceled by the caller.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// EngineError represents a structured error for storage and retrieval operations.
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *EngineError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *EngineError {
	return &EngineError{Code: ErrCodeInvalidArgument, Message: msg}
}

// InvalidArgumentf creates an invalid argument error with formatting.
func InvalidArgumentf(format string, args ...any) *EngineError {
	return &EngineError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *EngineError {
	return &EngineError{Code: ErrCodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatting.
func NotFoundf(format string, args ...any) *EngineError {
	return &EngineError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// BackendUnavailable creates a backend unavailable error.
func BackendUnavailable(msg string, cause error) *EngineError {
	return &EngineError{Code: ErrCodeBackendUnavailable, Message: msg, Cause: cause}
}

// EmbeddingProvider creates an embedding provider error.
func EmbeddingProvider(msg string, cause error) *EngineError {
	return &EngineError{Code: ErrCodeEmbeddingProvider, Message: msg, Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *EngineError {
	return &EngineError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error (or anything it wraps) carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an EngineError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return defaultCode
}
