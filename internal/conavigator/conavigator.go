// Package conavigator implements the co-navigator: a retry envelope
// around operations that fail transiently. Errors are treated as opaque;
// no error-kind inspection gates a retry.
package conavigator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Navigator carries a fixed retry budget and the base of the flexible-wait
// schedule for spacing independent retry attempts.
type Navigator struct {
	MaxRetries       uint64
	RetryDelay       time.Duration
	FlexibleWaitBase time.Duration
}

// New builds a Navigator with the given retry budget and delay.
func New(maxRetries uint64, retryDelay, flexibleWaitBase time.Duration) Navigator {
	return Navigator{MaxRetries: maxRetries, RetryDelay: retryDelay, FlexibleWaitBase: flexibleWaitBase}
}

// Default is the standard retry envelope: 3 retries, 1s fixed delay
// between them, 5s flexible-wait base.
func Default() Navigator {
	return New(3, time.Second, 5*time.Second)
}

// ExecuteWithRetry runs op, retrying on a fixed delay up to MaxRetries
// additional times with no escalation. The context cancels the wait
// between attempts, not the attempt itself.
func (n Navigator) ExecuteWithRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.RetryDelay), n.MaxRetries),
		ctx,
	)

	return backoff.Retry(op, policy)
}

// FlexibleWait returns the base×2^attempt delay an exponential backoff
// schedule would produce for the given attempt, reusing
// backoff.ExponentialBackOff rather than hand-computing powers of two. It
// returns backoff.Stop if ctx is already done.
func (n Navigator) FlexibleWait(ctx context.Context, base time.Duration, attempt int) time.Duration {
	if err := ctx.Err(); err != nil {
		return backoff.Stop
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	var wait time.Duration

	for i := 0; i <= attempt; i++ {
		wait = eb.NextBackOff()
	}

	return wait
}
