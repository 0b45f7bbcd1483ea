package staging

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the wait for an asynchronous index copy to become listed.
type RetryPolicy struct {
	// MaxAttempts is the number of listings, including the first.
	MaxAttempts int
	// Interval is the wait before the second listing.
	Interval time.Duration
	// Multiplier grows the wait between listings. 1 keeps it constant.
	Multiplier float64
	// MaxInterval caps the wait. Zero means no cap.
	MaxInterval time.Duration
}

// DefaultRetryPolicy polls ten times, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Interval:    time.Second,
		Multiplier:  1,
	}
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", p.Interval)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %g", p.Multiplier)
	}
	if p.MaxInterval != 0 && p.MaxInterval < p.Interval {
		return fmt.Errorf("max interval %s is below interval %s", p.MaxInterval, p.Interval)
	}
	return nil
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Interval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval == 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.Reset()
	return b
}

var errNotYet = errors.New("condition not met")

// Poll calls check until it reports true or the attempts are spent. It returns
// the number of calls made and whether the condition was met. Errors from check
// count as unmet attempts; only context cancellation is returned as an error.
func (p RetryPolicy) Poll(ctx context.Context, check func(ctx context.Context) (bool, error)) (int, bool, error) {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		ok, err := check(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)), //nolint:gosec // validated >= 1
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return attempts, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, false, fmt.Errorf("poll interrupted after %d attempts: %w", attempts, ctxErr)
	}
	return attempts, false, nil
}
