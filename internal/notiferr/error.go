// Package notiferr provides error types that classify failures of outbound
// calls.
package notiferr

import (
	"fmt"
	"time"
)

// RetryableError is returned when an operation failed because of a transient
// condition, like an exceeded rate limit or a 5xx response.
type RetryableError struct {
	// Err is the wrapped original error
	Err error
	// After is the earliest point in time the remote side accepts the
	// next request. It is zero when the remote did not announce it.
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{
		Err: originalErr,
	}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error (after %s): %s", e.After, e.Err)
}
