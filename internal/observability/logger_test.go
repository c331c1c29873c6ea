package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestJSONLogger_WritesOneLineOfValidJSON(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	// Act
	err := logger.LogEvent(context.Background(), Event{
		CorrelationID: "corr-1",
		Stage:         "execute",
		Outcome:       "ok",
		DurationMS:    42,
	})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded["correlation_id"] != "corr-1" {
		t.Fatalf("correlation_id = %v, want corr-1", decoded["correlation_id"])
	}
}

func TestJSONLogger_RequiresCorrelationID(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	// Act
	err := logger.LogEvent(context.Background(), Event{Stage: "execute"})

	// Assert
	if err == nil {
		t.Fatal("expected error when correlation_id is missing")
	}
}

func TestNoopLogger_NeverFails(t *testing.T) {
	// Arrange
	logger := NewNoopLogger()

	// Act
	err := logger.LogEvent(context.Background(), Event{})

	// Assert
	if err != nil {
		t.Fatalf("NoopLogger must never fail, got %v", err)
	}
}
