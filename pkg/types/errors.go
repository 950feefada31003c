package types

import (
	"errors"
	"fmt"
)

// Backend names used in errors, logs and metrics
const (
	BackendEmbedding = "embedding"
	BackendVector    = "qdrant"
	BackendChat      = "chat"
	BackendKeyword   = "keyword"
)

// ErrUnconfigured is returned when neither the vector nor the keyword backend is configured
var ErrUnconfigured = errors.New("no search backend configured")

// BackendNotFoundError reports that the keyword table is missing from the store
type BackendNotFoundError struct {
	Database string
	Table    string
}

func (e *BackendNotFoundError) Error() string {
	if e.Database == "" {
		return fmt.Sprintf("table `%s` not found", e.Table)
	}
	return fmt.Sprintf("table `%s` not found in database `%s`", e.Table, e.Database)
}

// UpstreamError wraps a failure talking to an external backend
type UpstreamError struct {
	Backend string // one of the Backend* constants
	Op      string // short description of the failed step
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Backend, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError builds an UpstreamError
func NewUpstreamError(backend, op string, err error) *UpstreamError {
	return &UpstreamError{Backend: backend, Op: op, Err: err}
}

// PayloadFieldError reports a vector hit whose payload lacks the configured
// source field, or holds a non-string value in it
type PayloadFieldError struct {
	Field  string
	Reason string
}

func (e *PayloadFieldError) Error() string {
	return fmt.Sprintf("payload field %q: %s", e.Field, e.Reason)
}

// IsBackendFailure reports whether err belongs to the per-request backend
// failure taxonomy (as opposed to an unexpected internal error)
func IsBackendFailure(err error) bool {
	var upstream *UpstreamError
	var notFound *BackendNotFoundError
	var payload *PayloadFieldError
	return errors.As(err, &upstream) || errors.As(err, &notFound) || errors.As(err, &payload)
}

// Document validation errors
var (
	ErrEmptyContent = errors.New("content cannot be empty")
)
