package evaluator

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when an evaluation exceeds its time budget. No
// partial report is produced; callers may retry.
var ErrTimeout = errors.New("evaluation timed out")

// ValidationError reports a malformed evaluation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CollectionError is returned when the main store evidence cannot be
// collected. The main store is the reference every criterion compares
// against, so no report is produced without it.
type CollectionError struct {
	Store string
	URL   string
	Err   error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s store evidence from %s: %v", e.Store, e.URL, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *CollectionError) Retryable() bool {
	var r interface{ Retryable() bool }
	if errors.As(e.Err, &r) {
		return r.Retryable()
	}
	return true
}

// IsRetryable reports whether err describes a transient condition.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var collection *CollectionError
	if errors.As(err, &collection) {
		return collection.Retryable()
	}

	return false
}
