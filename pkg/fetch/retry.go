package fetch

import (
	"context"
	"errors"
	"time"
)

const (
	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// RetryableError marks a failure as transient. Network errors and 5xx
// responses are wrapped in it; the fetch loop retries those and aborts
// on anything else.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry runs fn until it succeeds, returns a non-retryable error, or
// attempts run out. The wait before each retry starts at delay and
// doubles; ctx cancellation interrupts the wait.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
		err = fn()
		if err == nil || !errors.As(err, new(*RetryableError)) {
			return err
		}
	}
	return err
}

// RetryWithBackoff is Retry with the client defaults.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, retryAttempts, retryBaseDelay, fn)
}
