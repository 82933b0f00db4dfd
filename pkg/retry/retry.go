package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkgerrors "mercado/pkg/errors"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback runs fn until it succeeds, returns a fatal error, or the
// policy is exhausted. onRetry is called before each wait.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	policy = policy.withDefaults()

	var b backoff.BackOff
	if policy.MaxElapsedTime > 0 {
		b = ExponentialBackoffWithMaxElapsed(policy.InitialInterval, policy.MaxInterval, policy.MaxElapsedTime, policy.Multiplier)
	} else {
		b = ExponentialBackoff(policy.InitialInterval, policy.MaxInterval, policy.Multiplier)
	}

	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		if !pkgerrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, CalculateBackoffDuration(attempt, policy.InitialInterval, policy.Multiplier, policy.MaxInterval))
		}

		return err
	}

	return backoff.Retry(operation, b)
}
