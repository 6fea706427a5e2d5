// Package retry defines retry policies and backoff strategies.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// Policy defines a retry strategy.
type Policy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffType
	JitterFactor    float64 // 0.0-1.0
}

// BackoffType identifies the backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

// DefaultPolicy returns the policy used for channel history fetches.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      4,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.25,
	}
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() Policy {
	return Policy{}
}

// CalculateDelay calculates the delay before the given retry attempt (1-based).
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration

	switch p.BackoffStrategy {
	case BackoffFixed:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = p.InitialDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// ShouldRetry determines if another attempt may follow a failure.
func (p *Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return platformerrors.IsRetryable(err)
}

// Hint lets an error carry a server-requested wait (e.g. FLOOD_WAIT) that overrides backoff.
type Hint interface {
	RetryAfter() time.Duration
}

// OnRetry is called before sleeping for the next attempt.
type OnRetry func(attempt int, delay time.Duration, err error)

// ExecuteWithResult runs fn until it succeeds, returns a non-retryable error, or the policy
// is exhausted. The last error is returned unchanged.
func ExecuteWithResult[T any](ctx context.Context, policy Policy, onRetry OnRetry, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		r, err := fn(ctx, attempt)
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !policy.ShouldRetry(attempt, err) {
			break
		}

		delay := policy.CalculateDelay(attempt + 1)
		var hint Hint
		if errors.As(err, &hint) && hint.RetryAfter() > delay {
			delay = hint.RetryAfter()
		}
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}
