// Package retry runs an operation with exponential backoff.
// Used by the engagement layer so a transient store error does not
// surface to the user as lost progress.
package retry

import (
	"context"
	"errors"
	"time"
)

// Config configures retry behavior.
type Config struct {
	MaxRetries int           // retries after the first attempt; 0 means one attempt only
	BaseDelay  time.Duration // initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // cap on backoff delay
}

// Default returns production retry defaults.
func Default() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   1 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (c Config) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Do calls fn until it succeeds, returns a *Permanent error, the retries are
// exhausted or ctx is done. onRetry, if non-nil, is called before each retry
// with the attempt number and the error that caused it. The last error is
// returned unwrapped from Permanent.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		timer := time.NewTimer(cfg.Backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
