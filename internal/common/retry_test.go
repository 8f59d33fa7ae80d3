package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andeanvet/salescope/internal/service"
)

func fastRetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetryOptions())

	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("always failing")
	}, fastRetryOptions())

	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("WithRetry() error = %v, want ErrMaxRetries", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	permanent := &RetryableError{Err: errors.New("bad credentials"), Retryable: false}

	err := WithRetry(context.Background(), func() error {
		attempts++
		return permanent
	}, fastRetryOptions())

	if !errors.As(err, new(*RetryableError)) {
		t.Fatalf("WithRetry() error = %v, want the permanent error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, fastRetryOptions())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WithRetry() error = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", ErrRateLimit, true},
		{"source unavailable", ErrSourceUnavailable, true},
		{"wrapped source unavailable", errors.Join(errors.New("fetch"), ErrSourceUnavailable), true},
		{"retryable wrapper", &RetryableError{Err: errors.New("x"), Retryable: true}, true},
		{"non-retryable wrapper", &RetryableError{Err: errors.New("x"), Retryable: false}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
