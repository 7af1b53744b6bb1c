package llm

import (
	"context"
	"errors"
	"time"
)

// RetryableStatus is the set of HTTP status codes an adapter must retry with
// exponential backoff (spec §4.3): 3 attempts, 1s initial delay, doubling.
var RetryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// StatusError lets a transport-specific error expose the status code the
// retry policy keys on, without the retry package depending on any one
// HTTP client.
type StatusError interface {
	error
	StatusCode() int
}

const (
	maxAttempts  = 3
	initialDelay = 1 * time.Second
)

// WithRetry runs fn up to maxAttempts times, retrying only when the error
// implements StatusError with a retryable code, doubling the delay each
// time (ported from the teacher's rate-limit waiter, generalized from
// rate-limit-specific waiting to the adapter's generic transient-failure
// policy).
func WithRetry(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	delay := initialDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var statusErr StatusError
		if !errors.As(err, &statusErr) || !RetryableStatus[statusErr.StatusCode()] {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", lastErr
}
