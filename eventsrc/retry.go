package eventsrc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type retryConfig struct {
	backOff        backoff.BackOff
	maxElapsedTime time.Duration
	maxTries       uint
}

// RetryOption configures Retry.
type RetryOption func(*retryConfig)

// WithMaxElapsedTime bounds the total time spent retrying.
func WithMaxElapsedTime(maxElapsedTime time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.maxElapsedTime = maxElapsedTime
	}
}

// WithMaxTries bounds the number of attempts, the first one included.
func WithMaxTries(maxTries uint) RetryOption {
	return func(c *retryConfig) {
		c.maxTries = maxTries
	}
}

// WithBackOff replaces the default exponential backoff policy.
func WithBackOff(b backoff.BackOff) RetryOption {
	return func(c *retryConfig) {
		c.backOff = b
	}
}

// Retry runs op until it succeeds, fails with an error other than ErrConcurrency, or the
// retry budget is exhausted. op must re-read the entity it updates on every attempt,
// otherwise the update would be built against stale state.
func Retry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...RetryOption) (T, error) {
	cfg := &retryConfig{
		backOff:        backoff.NewExponentialBackOff(),
		maxElapsedTime: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	operation := func() (T, error) {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		var concurrency ErrConcurrency
		if errors.As(err, &concurrency) {
			return res, err
		}
		return res, backoff.Permanent(err)
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(cfg.backOff),
		backoff.WithMaxElapsedTime(cfg.maxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Concurrent modification, retrying", "error", err, "retryIn", next)
		}),
	}
	if cfg.maxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(cfg.maxTries))
	}

	return backoff.Retry(ctx, operation, retryOpts...)
}
