package upstream

import (
	"errors"
	"fmt"
	"time"
)

// Outcome taxonomy for checks. Callers classify with errors.Is / errors.As;
// checkers wrap these with fmt.Errorf("%w: ...") for context.
var (
	// ErrNotModified reports that the source is verifiably unchanged
	// (HTTP 304, matching ETag, unchanged mtime). It is a non-error
	// outcome: no events, cursor kept fresh, nothing to retry.
	ErrNotModified = errors.New("not modified")

	// ErrUnreachable covers network failures, missing resources and
	// server errors that exhausted their retries.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrAuthRequired reports a credential problem (HTTP 401/403). Not
	// retried automatically; needs operator attention.
	ErrAuthRequired = errors.New("authentication required")

	// ErrMalformed reports a response that arrived but could not be
	// parsed into anything useful.
	ErrMalformed = errors.New("malformed response")

	// ErrUnknownType reports an upstream type absent from the checker
	// registry. A configuration error, never silently skipped.
	ErrUnknownType = errors.New("unknown upstream type")
)

// RateLimitedError reports that the source asked us to back off. The engine
// defers the task instead of failing it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RetryAfterOf extracts the backoff hint from err, or 0 if err is not a
// rate-limit outcome.
func RetryAfterOf(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
