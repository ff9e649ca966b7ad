// Package retry wraps external-call-shaped operations with bounded
// exponential backoff. It is stateless: the same executor serves the search,
// LLM, and email collaborators without per-collaborator special-casing.
package retry

import (
	"context"
	"time"

	backoff "github.com/sethvargo/go-retry"
)

// Policy controls how an operation is retried. Retryable decides whether a
// failure is worth another attempt; failures it rejects are surfaced
// immediately and never retried.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	PerAttemptTimeout time.Duration
	Retryable         func(error) bool
}

// DefaultPolicy returns the policy shared by all collaborator calls:
// three attempts, exponential backoff from one second with jitter, delays
// capped at thirty seconds.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		PerAttemptTimeout: 30 * time.Second,
		Retryable:         retryable,
	}
}

// Do runs op under the policy and reports how many attempts were made.
// The returned error is the last failure: either fatal on its first
// occurrence or retryable after MaxAttempts were exhausted.
func Do(ctx context.Context, p Policy, op func(context.Context) error) (int, error) {
	b := backoff.NewExponential(p.BaseDelay)
	b = backoff.WithJitter(p.BaseDelay/2, b)
	if p.MaxDelay > 0 {
		b = backoff.WithCappedDuration(p.MaxDelay, b)
	}
	b = backoff.WithMaxRetries(uint64(p.MaxAttempts-1), b)

	attempts := 0
	err := backoff.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if p.PerAttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
			defer cancel()
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && p.Retryable(err) {
			return backoff.RetryableError(err)
		}
		return err
	})
	return attempts, err
}
