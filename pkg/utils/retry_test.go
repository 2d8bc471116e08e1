package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastRetry(attempts int, retryable ...error) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: retryable,
	}
}

func TestRetryWithResult_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), fastRetry(5, errFlaky), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3, errFlaky), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 3 {
		t.Errorf("got %v after %d calls, want errFlaky after 3", err, calls)
	}
}

func TestRetry_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry(3)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	err := Retry(ctx, cfg, func() error { return errFlaky })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute, 2); d != time.Second {
		t.Errorf("attempt 0 = %v, want 1s", d)
	}
	if d := CalculateBackoff(3, time.Second, time.Minute, 2); d != 8*time.Second {
		t.Errorf("attempt 3 = %v, want 8s", d)
	}
	if d := CalculateBackoff(10, time.Second, time.Minute, 2); d != time.Minute {
		t.Errorf("attempt 10 = %v, want cap of 1m", d)
	}
}
