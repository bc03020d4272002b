package gateway

import (
	"context"
	"errors"
	"time"
)

// RetryConfig bounds retries of gateway calls. Only transient transport
// failures are retried; definitive outcomes (declines, missing methods,
// invalid signatures) are returned immediately.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	CallTimeout    time.Duration
}

// DefaultRetryConfig returns the bounds used for blocking gateway I/O.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		CallTimeout:    15 * time.Second,
	}
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, ErrGatewayUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// WithRetry runs fn under a per-call timeout, retrying transient failures
// with doubling backoff up to the configured attempt bound.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
	}
	return lastErr
}
