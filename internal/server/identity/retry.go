package identity

import (
	"context"
	"net/http"
	"time"
)

type attemptFunc func() (status int, body []byte, err error)

// doWithRetry retries fn on transport errors, 429 and 5xx with exponential
// backoff. The last attempt's result is returned as is.
func doWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn attemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	delay := initialDelay
	for i := 0; i < attempts; i++ {
		status, body, err := fn()
		if err == nil && !transient(status) {
			return status, body, nil
		}
		if i == attempts-1 {
			return status, body, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < 10*time.Second {
			delay *= 2
		}
	}
	return 0, nil, context.DeadlineExceeded
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
