package jobqueue

import (
	stderrors "errors"

	domainerrors "github.com/polyforge/polyforge/internal/errors"
)

// Classify maps a worker-returned error onto the queue's retry decision
// (SPEC_FULL.md §A.2): InputError/AuthError/DataError never retry,
// TransientError/RateLimitError always do, and anything unrecognized
// defaults to retryable (spec §7 "Unexpected").
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var inputErr *domainerrors.InputError
	var authErr *domainerrors.AuthError
	var dataErr *domainerrors.DataError
	if stderrors.As(err, &inputErr) || stderrors.As(err, &authErr) || stderrors.As(err, &dataErr) {
		return NewNonRetryable(err)
	}

	var retryable *RetryableError
	var nonRetryable *NonRetryableError
	if stderrors.As(err, &retryable) || stderrors.As(err, &nonRetryable) {
		return err
	}

	return NewRetryable(err)
}

// IsRetryable reports whether the classified error should consume an
// attempt and go back to QUEUED rather than failing outright.
func IsRetryable(err error) bool {
	var nonRetryable *NonRetryableError
	return !stderrors.As(err, &nonRetryable)
}
