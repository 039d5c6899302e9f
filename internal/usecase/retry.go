package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrTimeout marks a provider call that exceeded the per-call deadline.
	ErrTimeout = errors.New("provider call timed out")
	// ErrCancelled marks work aborted because the batch context was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// RetryPolicy bounds how often a failing provider call is attempted within one item.
// MaxAttempts of 1 or less means a single attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy makes exactly one attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, InitialBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second}
}

func (p RetryPolicy) attempts() uint {
	if p.MaxAttempts < 1 {
		return 1
	}
	return uint(p.MaxAttempts)
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	return b
}

// callWithPolicy runs op under the retry policy, giving each attempt its own timeout.
// Deadline overruns surface as ErrTimeout and parent cancellation as ErrCancelled; the latter
// is never retried, nor is an error op marks with backoff.Permanent.
func callWithPolicy[T any](ctx context.Context, policy RetryPolicy, timeout time.Duration, notify backoff.Notify, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		res, err := op(callCtx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return res, err
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(policy.attempts()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return res, err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
