package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

func TestWithTimeout_ReturnsUnderlyingError(t *testing.T) {
	// Arrange
	wantErr := errors.New("vendor call failed")

	// Act
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return wantErr
	})

	// Assert
	if err != wantErr {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}

func TestWithTimeout_ExpiresOnSlowCall(t *testing.T) {
	// Act
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// Assert
	if _, ok := err.(*cerrors.TimeoutError); !ok {
		t.Fatalf("expected *cerrors.TimeoutError, got %T: %v", err, err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	// Arrange
	b := NewBreaker(BreakerConfig{Name: "test", FailureThreshold: 2, WindowSeconds: 60, RecoverySeconds: 30})
	failing := func() (interface{}, error) { return nil, errors.New("boom") }

	// Act
	b.Execute(failing)
	b.Execute(failing)
	_, err := b.Execute(failing)

	// Assert
	if _, ok := err.(*cerrors.CircuitBreakerError); !ok {
		t.Fatalf("expected breaker to be open, got %T: %v", err, err)
	}
	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	// Arrange
	b := NewBreaker(BreakerConfig{Name: "test2", FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30})

	// Act
	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("State() = %q, want closed", b.State())
	}
}
