// Package errors defines the error taxonomy of spec §7: transient,
// rate-limited, auth/config, input, data, and unexpected errors. Each kind
// wraps an underlying cause and supports errors.Is/errors.As so callers
// higher up the stack (the job queue, the REST layer) can classify an error
// without string matching.
package errors

import "fmt"

// TransientError is a network timeout, HTTP 429/503, chat-platform
// FloodWait, or a locked filesystem — always retryable.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

// NewTransient wraps err as a TransientError.
func NewTransient(err error) *TransientError { return &TransientError{Cause: err} }

// RateLimitError is a subset of TransientError that carries the exact
// retry-after duration the remote asked for.
type RateLimitError struct {
	Cause      error
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds: %v", e.RetryAfterSeconds, e.Cause)
}
func (e *RateLimitError) Unwrap() error { return e.Cause }

// NewRateLimit builds a RateLimitError with the remote's requested wait.
func NewRateLimit(retryAfterSeconds int, cause error) *RateLimitError {
	return &RateLimitError{Cause: cause, RetryAfterSeconds: retryAfterSeconds}
}

// AuthError is a missing credential, bad token, or unconfigured API —
// surfaced as HTTP 401/503 and marks dependent jobs FAILED non-retryably.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth/config: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

// NewAuth wraps err as an AuthError.
func NewAuth(err error) *AuthError { return &AuthError{Cause: err} }

// InputError is an invalid URL, non-existent id, malformed/password
// protected archive, or a path-traversal attempt — non-retryable, surfaced
// to the user.
type InputError struct {
	Cause error
}

func (e *InputError) Error() string { return fmt.Sprintf("input: %v", e.Cause) }
func (e *InputError) Unwrap() error { return e.Cause }

// NewInput wraps err as an InputError.
func NewInput(err error) *InputError { return &InputError{Cause: err} }

// DataError is a uniqueness or foreign-key violation — non-retryable,
// logged but not surfaced verbatim.
type DataError struct {
	Cause error
}

func (e *DataError) Error() string { return fmt.Sprintf("data: %v", e.Cause) }
func (e *DataError) Unwrap() error { return e.Cause }

// NewData wraps err as a DataError.
func NewData(err error) *DataError { return &DataError{Cause: err} }
