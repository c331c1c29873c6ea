package cache

import (
	"context"
	"testing"

	"github.com/entool-router/sqlcore/internal/schema"
)

func TestGetSet_InProcessRoundTrip(t *testing.T) {
	// Arrange
	c := New(Config{TTLSeconds: 60})
	ctx := context.Background()
	plan := schema.Plan{SQL: "SELECT 1", Confidence: 0.9}

	// Act
	c.Set(ctx, "key-1", plan)
	got := c.Get(ctx, "key-1")

	// Assert
	if got == nil {
		t.Fatal("expected cache hit, got nil")
	}
	if got.SQL != plan.SQL {
		t.Fatalf("SQL = %q, want %q", got.SQL, plan.SQL)
	}
}

func TestGet_MissReturnsNil(t *testing.T) {
	// Arrange
	c := New(Config{TTLSeconds: 60})

	// Act
	got := c.Get(context.Background(), "missing")

	// Assert
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestSet_SkipsOversizedValue(t *testing.T) {
	// Arrange
	c := New(Config{TTLSeconds: 60, MaxValueBytes: 10})
	ctx := context.Background()

	// Act
	c.Set(ctx, "key-1", schema.Plan{SQL: "SELECT * FROM a_table_with_a_very_long_name_indeed"})
	got := c.Get(ctx, "key-1")

	// Assert
	if got != nil {
		t.Fatalf("expected oversized value to be skipped, got %+v", got)
	}
}

func TestKey_NormalizesWhitespaceAndCase(t *testing.T) {
	// Act
	a := Key("How many orders   today?")
	b := Key("how many orders today?")

	// Assert
	if a != b {
		t.Fatalf("expected normalized keys to match: %q != %q", a, b)
	}
}
