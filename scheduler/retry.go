package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"simcheck/types"
)

// retryPolicy bounds each attempt with a call timeout and retries transient
// failures with exponential backoff.
type retryPolicy struct {
	attempts    int
	baseDelay   time.Duration
	callTimeout time.Duration
}

func (s *Scheduler) policy() retryPolicy {
	return retryPolicy{
		attempts:    s.cfg.MaxAttempts,
		baseDelay:   s.cfg.RetryBaseDelay,
		callTimeout: s.cfg.CallTimeout,
	}
}

// retry runs op until it succeeds, fails permanently, or exhausts the policy.
// Only errors wrapping types.ErrTransientIO, and attempts that hit the call
// timeout while ctx is still live, are retried.
func retry[T any](ctx context.Context, p retryPolicy, what string, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.baseDelay
	b.MaxInterval = 20 * p.baseDelay

	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()

		v, err := op(callCtx)
		switch {
		case err == nil:
			return v, nil
		case ctx.Err() != nil:
			return v, backoff.Permanent(ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			return v, types.Transient(fmt.Errorf("%s timed out after %s: %w", what, p.callTimeout, err))
		case types.IsTransient(err):
			return v, err
		default:
			return v, backoff.Permanent(err)
		}
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("Warning: %s failed, retrying in %s: %v", what, next.Round(time.Millisecond), err)
		}),
	)
}

// retryDo is retry for operations without a result.
func retryDo(ctx context.Context, p retryPolicy, what string, op func(context.Context) error) error {
	_, err := retry(ctx, p, what, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
