package ai

import (
	"context"
	"log/slog"
	"time"

	apperr "github.com/openparl/hansardsearch/server/internal/errors"
)

// RetryPolicy is a bounded exponential backoff schedule for remote calls.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the default retry schedule for embedding calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Do executes fn with exponential backoff. Permanent service errors and
// invalid arguments are surfaced immediately; only transient failures are
// retried. Cancellation of ctx aborts the wait between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if apperr.IsCode(err, apperr.ErrCodePermanentService) || apperr.IsCode(err, apperr.ErrCodeInvalidArgument) {
			return err
		}
		if attempt < attempts-1 {
			slog.Debug("embedding request failed, retrying",
				"attempt", attempt+1,
				"wait_time", backoff,
				"error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}
	return lastErr
}
