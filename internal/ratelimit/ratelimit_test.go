package ratelimit

import (
	"testing"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

func TestCheck_AdmitsWithinLimit(t *testing.T) {
	// Arrange
	l := New(3, 60)

	// Act + Assert
	for i := 0; i < 3; i++ {
		if err := l.Check("user-1"); err != nil {
			t.Fatalf("request %d: unexpected rejection: %v", i, err)
		}
	}
}

func TestCheck_RejectsOverLimit(t *testing.T) {
	// Arrange
	l := New(2, 60)
	l.Check("user-1")
	l.Check("user-1")

	// Act
	err := l.Check("user-1")

	// Assert
	rle, ok := err.(*cerrors.RateLimitError)
	if !ok {
		t.Fatalf("expected *cerrors.RateLimitError, got %T", err)
	}
	if rle.RetryAfterSeconds < 0 {
		t.Fatalf("RetryAfterSeconds must be non-negative, got %v", rle.RetryAfterSeconds)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	// Arrange
	l := New(1, 60)
	if err := l.Check("user-1"); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	// Act
	err := l.Check("user-2")

	// Assert
	if err != nil {
		t.Fatalf("user-2 should have its own independent window, got %v", err)
	}
}
