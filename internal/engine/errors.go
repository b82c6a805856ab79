package engine

import "errors"

// Client errors: deterministic, never retried, no side effects persisted.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDailyLimitExceeded  = errors.New("daily limit exceeded")
	ErrInvalidState        = errors.New("operation not valid in current state")
	ErrConcurrentDuplicate = errors.New("identical operation already in flight")
	ErrAmountNotPositive   = errors.New("amount must be positive")
)

// Contention errors: transient, safe to retry after backoff.
var (
	ErrLockTimeout        = errors.New("timed out waiting for vendor lock")
	ErrContentionExceeded = errors.New("commit retries exhausted under contention")
	ErrOperationInFlight  = errors.New("request with this idempotency key is being processed")
)

// Retryable reports whether the caller may safely resubmit the request.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrContentionExceeded) ||
		errors.Is(err, ErrOperationInFlight)
}
