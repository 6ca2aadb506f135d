package store

import (
	"context"
	"time"
)

const (
	readAttempts       = 3
	readInitialBackoff = 50 * time.Millisecond
)

// retryRead runs a driver read, retrying a small bounded number of times with
// doubling backoff. Only reads go through here: a failed write surfaces
// immediately so the caller decides whether repeating it is safe.
func retryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	var err error

	backoff := readInitialBackoff
	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil || attempt == readAttempts-1 || ctx.Err() != nil {
			return result, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return result, err
		}
		backoff *= 2
	}
}
