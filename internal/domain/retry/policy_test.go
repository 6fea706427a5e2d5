package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/retry"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  retry.Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "zero attempt",
			policy:  retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: time.Second},
			attempt: 0,
			want:    0,
		},
		{
			name:    "fixed",
			policy:  retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt: 5,
			want:    100 * time.Millisecond,
		},
		{
			name:    "linear",
			policy:  retry.Policy{BackoffStrategy: retry.BackoffLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt: 3,
			want:    300 * time.Millisecond,
		},
		{
			name:    "exponential",
			policy:  retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt: 3,
			want:    400 * time.Millisecond,
		},
		{
			name:    "exponential capped",
			policy:  retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt: 10,
			want:    time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CalculateDelay(tt.attempt); got != tt.want {
				t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestPolicy_CalculateDelayJitterBounds(t *testing.T) {
	policy := retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: 100 * time.Millisecond, JitterFactor: 0.5}
	for i := 0; i < 50; i++ {
		d := policy.CalculateDelay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", d)
		}
	}
}

func transientErr() error {
	return platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransient, "connection reset", nil, "")
}

func TestExecuteWithResult_RetriesTransient(t *testing.T) {
	policy := retry.Policy{MaxRetries: 3, BackoffStrategy: retry.BackoffFixed}
	calls := 0
	retries := 0

	got, err := retry.ExecuteWithResult(context.Background(), policy, func(int, time.Duration, error) { retries++ }, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", transientErr()
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 || retries != 2 {
		t.Fatalf("got=%q calls=%d retries=%d", got, calls, retries)
	}
}

func TestExecuteWithResult_StopsOnNonRetryable(t *testing.T) {
	policy := retry.Policy{MaxRetries: 5, BackoffStrategy: retry.BackoffFixed}
	authErr := platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "session revoked", nil, "")
	calls := 0

	_, err := retry.ExecuteWithResult(context.Background(), policy, nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, authErr
	})
	if !errors.Is(err, authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithResult_Exhausts(t *testing.T) {
	policy := retry.Policy{MaxRetries: 2, BackoffStrategy: retry.BackoffFixed}
	calls := 0

	_, err := retry.ExecuteWithResult(context.Background(), policy, nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, transientErr()
	})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithResult_ContextCancelledDuringBackoff(t *testing.T) {
	policy := retry.Policy{MaxRetries: 3, InitialDelay: time.Hour, BackoffStrategy: retry.BackoffFixed}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := retry.ExecuteWithResult(ctx, policy, func(int, time.Duration, error) { cancel() }, func(ctx context.Context, attempt int) (int, error) {
		return 0, transientErr()
	})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransient) {
		t.Fatalf("expected last transient error, got %v", err)
	}
}
