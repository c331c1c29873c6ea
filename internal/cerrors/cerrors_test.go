package cerrors

import (
	"errors"
	"testing"
)

func TestSafetyError_NonRetryable(t *testing.T) {
	// Arrange + Act
	err := NewSafetyError("only SELECT allowed")

	// Assert
	if err.Retryable {
		t.Fatal("SafetyError must never be retryable")
	}
	if err.Category != CategoryValidation {
		t.Fatalf("Category = %v, want %v", err.Category, CategoryValidation)
	}
}

func TestRateLimitError_CarriesRetryAfter(t *testing.T) {
	// Arrange + Act
	err := NewRateLimitError(12.5)

	// Assert
	if err.RetryAfterSeconds != 12.5 {
		t.Fatalf("RetryAfterSeconds = %v, want 12.5", err.RetryAfterSeconds)
	}
	if got := err.Details["retry_after_seconds"]; got != 12.5 {
		t.Fatalf("Details[retry_after_seconds] = %v, want 12.5", got)
	}
}

func TestCircuitBreakerError_StateInMessage(t *testing.T) {
	// Arrange + Act
	err := NewCircuitBreakerError("open")

	// Assert
	if err.State != "open" {
		t.Fatalf("State = %q, want open", err.State)
	}
	if !err.Retryable {
		t.Fatal("CircuitBreakerError should be retryable (caller may try again later)")
	}
}

func TestCoreError_Unwrap(t *testing.T) {
	// Arrange
	cause := errors.New("connection refused")
	err := NewExecutionError("query failed", true, cause)

	// Act
	unwrapped := errors.Unwrap(err)

	// Assert
	if unwrapped != cause {
		t.Fatalf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestCacheError_NeverRetryable(t *testing.T) {
	// Arrange + Act
	err := NewCacheError("redis unreachable", errors.New("dial tcp: timeout"))

	// Assert
	if err.Retryable {
		t.Fatal("CacheError must never be retryable — the cache is best-effort")
	}
}

func TestPlannerError_CarriesCause(t *testing.T) {
	// Arrange + Act
	err := NewPlannerError("timeout", "LLM call timed out", true, nil)

	// Assert
	if err.PlannerCause != "timeout" {
		t.Fatalf("PlannerCause = %q, want timeout", err.PlannerCause)
	}
	if err.Category != CategoryPlanning {
		t.Fatalf("Category = %v, want %v", err.Category, CategoryPlanning)
	}
}
