package validator

import (
	"strings"
	"testing"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

func newTestValidator() *Validator {
	return New(200, []string{"sales_fact", "job_runs"}, nil)
}

func TestValidate_AcceptsAllowlistedSelect(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act
	sanitized, err := v.Validate("SELECT * FROM sales_fact WHERE region = 'EU'")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sanitized, "LIMIT 200") {
		t.Fatalf("expected default LIMIT appended, got %q", sanitized)
	}
}

func TestValidate_PreservesExistingLimit(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act
	sanitized, err := v.Validate("SELECT * FROM sales_fact LIMIT 10")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(strings.ToUpper(sanitized), "LIMIT") != 1 {
		t.Fatalf("expected exactly one LIMIT clause, got %q", sanitized)
	}
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act
	_, err := v.Validate("UPDATE sales_fact SET region = 'US'")

	// Assert
	if _, ok := err.(*cerrors.SafetyError); !ok {
		t.Fatalf("expected *cerrors.SafetyError, got %T", err)
	}
}

func TestValidate_RejectsSemicolon(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act
	_, err := v.Validate("SELECT * FROM sales_fact; DROP TABLE sales_fact")

	// Assert
	if err == nil {
		t.Fatal("expected error for embedded semicolon")
	}
}

func TestValidate_RejectsBlockedKeywordInsideSelect(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act: a blocked keyword appearing anywhere inside a statement that
	// starts with SELECT and has no semicolon must be rejected by the
	// keyword gate.
	_, err := v.Validate("SELECT * FROM sales_fact WHERE region IN (DELETE FROM job_runs RETURNING region)")

	// Assert
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "blocked keyword") {
		t.Fatalf("expected blocked-keyword rejection reason, got %v", err)
	}
}

func TestValidate_RejectsTableNotAllowlisted(t *testing.T) {
	// Arrange
	v := newTestValidator()

	// Act
	_, err := v.Validate("SELECT * FROM secret_table")

	// Assert
	if err == nil {
		t.Fatal("expected rejection for non-allowlisted table")
	}
	if !strings.Contains(err.Error(), "not allowlisted") {
		t.Fatalf("expected allowlist rejection reason, got %v", err)
	}
}

func TestValidate_BlockedKeywordIsWholeWord(t *testing.T) {
	// Arrange: "CREATEDAT" contains "CREATE" as a substring but not as a
	// whole word, and must not trip the blocklist gate.
	v := New(200, []string{"job_runs"}, []string{"CREATE"})

	// Act
	_, err := v.Validate("SELECT createdat FROM job_runs")

	// Assert
	if err != nil {
		t.Fatalf("unexpected rejection on substring match: %v", err)
	}
}
