package botengine

import (
	"context"
	"time"
)

const (
	retryAttempts = 3
	retryBaseWait = time.Second
)

// withRetry runs a transient exchange/AI call, making up to retryAttempts
// attempts in total with the delay doubling between attempts (base ~1s), giving up and
// surfacing the last error once exhausted. It never retries past ctx
// cancellation.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	wait := retryBaseWait

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
