package llmprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/entool-router/sqlcore/internal/schema"
)

func TestMockProvider_ReturnsConfiguredPlan(t *testing.T) {
	// Arrange
	m := NewMockProvider()
	m.SetPlan(schema.Plan{SQL: "SELECT * FROM sales_fact LIMIT 10", Confidence: 0.8})

	// Act
	plan, _, err := m.GenerateStructured(context.Background(), "how many sales?")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Source != schema.SourceLLM {
		t.Fatalf("Source = %v, want %v", plan.Source, schema.SourceLLM)
	}
	if m.CallCount() != 1 {
		t.Fatalf("CallCount() = %d, want 1", m.CallCount())
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	// Arrange
	m := NewMockProvider()
	wantErr := errors.New("rate limited by vendor")
	m.SetError(wantErr)

	// Act
	_, _, err := m.GenerateStructured(context.Background(), "anything")

	// Assert
	if err != wantErr {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}

func TestParsePlanSchema_ExtractsJSONFromSurroundingText(t *testing.T) {
	// Arrange
	raw := `Sure, here is the plan:
{"sql": "SELECT * FROM sales_fact LIMIT 50", "confidence": 0.92, "explanation": "totals by region"}
Let me know if you need anything else.`

	// Act
	ps, err := parsePlanSchema(raw)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", ps.Confidence)
	}
}

func TestParsePlanSchema_RejectsOutOfRangeConfidence(t *testing.T) {
	// Act
	_, err := parsePlanSchema(`{"sql": "SELECT 1", "confidence": 1.5, "explanation": "x"}`)

	// Assert
	if err == nil {
		t.Fatal("expected schema violation for confidence out of [0,1]")
	}
}

func TestParsePlanSchema_RejectsMissingSQL(t *testing.T) {
	// Act
	_, err := parsePlanSchema(`{"sql": "", "confidence": 0.5, "explanation": "x"}`)

	// Assert
	if err == nil {
		t.Fatal("expected schema violation for empty sql")
	}
}

func TestParsePlanSchema_RejectsSQLWithoutLimit(t *testing.T) {
	// Act
	_, err := parsePlanSchema(`{"sql": "SELECT * FROM sales_fact", "confidence": 0.9, "explanation": "totals"}`)

	// Assert
	if err == nil {
		t.Fatal("expected schema violation for sql missing a LIMIT clause")
	}
}

func TestRegistry_ActiveRequiresSetActive(t *testing.T) {
	// Arrange
	r := NewRegistry()
	r.Register(NewMockProvider())

	// Act
	_, err := r.Active()

	// Assert
	if err == nil {
		t.Fatal("expected error when no provider has been set active")
	}

	// Act
	if err := r.SetActive("mock"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := r.Active()

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mock" {
		t.Fatalf("Active().Name() = %q, want mock", p.Name())
	}
}

func TestRateTable_CostIsZeroForUnknownModel(t *testing.T) {
	// Act
	cost := DefaultRateTable.cost("unknown-model", 1000, 1000)

	// Assert
	if cost != 0 {
		t.Fatalf("cost = %v, want 0 for unknown model", cost)
	}
}
