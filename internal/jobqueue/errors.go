package jobqueue

import "fmt"

// RetryableError marks a job failure that should consume an attempt and go
// back to QUEUED (subject to max_attempts and backoff). NonRetryableError
// marks a failure that should fail the job immediately regardless of
// remaining attempts (spec §4.2, SPEC_FULL.md §A.2).
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Cause) }
func (e *RetryableError) Unwrap() error { return e.Cause }

// NewRetryable wraps err as a RetryableError.
func NewRetryable(err error) *RetryableError { return &RetryableError{Cause: err} }

// NonRetryableError marks a failure the queue must not retry.
type NonRetryableError struct {
	Cause error
}

func (e *NonRetryableError) Error() string { return fmt.Sprintf("non-retryable: %v", e.Cause) }
func (e *NonRetryableError) Unwrap() error { return e.Cause }

// NewNonRetryable wraps err as a NonRetryableError.
func NewNonRetryable(err error) *NonRetryableError { return &NonRetryableError{Cause: err} }
