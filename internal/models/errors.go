package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients as {"error":{"code","message","details"}}.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeTaskNotFound     = "TASK_NOT_FOUND"
	CodeQueueFull        = "INGEST_QUEUE_FULL"
	CodeFileNotSupported = "FILE_NOT_SUPPORTED"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeParseFailed      = "KB_PARSE_FAILED"
	CodeChunkingFailed   = "KB_CHUNKING_FAILED"
	CodeIngestFailed     = "KB_INGEST_FAILED"
	CodeEmbeddingFailed  = "EMBEDDING_FAILED"
	CodeVectorStore      = "VECTORDB_ERROR"
	CodeGeneration       = "LLM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error is a typed error carried across component boundaries. Components
// return it for failures a client can act on; plain wrapped errors are
// reported as CodeInternal.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

// NewError creates a typed error with the given code and formatted message.
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error that records cause for errors.Is/As chains.
func WrapError(code string, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails attaches one detail key and returns the error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps an error code to an HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeParseFailed, CodeFileNotSupported, CodeFileTooLarge:
		return http.StatusBadRequest
	case CodeNotFound, CodeTaskNotFound:
		return http.StatusNotFound
	case CodeQueueFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsError returns err as a typed *Error, wrapping it as CodeInternal when it
// is not one already.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error(), cause: err}
}
