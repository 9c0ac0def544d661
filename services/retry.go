package services

import (
	"context"
	"fmt"
	"time"

	"wardrobeapi/config"
	"wardrobeapi/metrics"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a call to the text generator is repeated.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.LLMMaxAttempts,
		InitialInterval: cfg.LLMRetryInitial,
		MaxInterval:     cfg.LLMRetryMax,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	// attempts are bounded by count, not by wall time
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, returns a Permanent error, the context ends
// or the policy's attempts are used up. The last error is returned.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op(ctx)
	}, policy.backOff(ctx), func(err error, wait time.Duration) {
		metrics.RetryAttempts.Inc()
		fmt.Printf("[Retry] attempt %d failed: %v, next in %v\n", attempt, err, wait)
	})
}

// Permanent marks err so Retry stops immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
