package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entool-router/sqlcore/internal/audit"
	"github.com/entool-router/sqlcore/internal/config"
	"github.com/entool-router/sqlcore/internal/core"
	"github.com/entool-router/sqlcore/internal/executor"
	"github.com/entool-router/sqlcore/internal/llmprovider"
	"github.com/entool-router/sqlcore/internal/planner"
	"github.com/entool-router/sqlcore/internal/ratelimit"
	"github.com/entool-router/sqlcore/internal/resilience"
	"github.com/entool-router/sqlcore/internal/schema"
	"github.com/entool-router/sqlcore/internal/validator"
)

func TestBuildProvider_DefaultsToMock(t *testing.T) {
	// Act
	p, err := buildProvider(config.LLMConfig{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mock" {
		t.Fatalf("Name() = %q, want mock", p.Name())
	}
}

func TestBuildProvider_RejectsUnknownProvider(t *testing.T) {
	// Act
	_, err := buildProvider(config.LLMConfig{Provider: "not-a-real-vendor"})

	// Assert
	if err == nil {
		t.Fatal("expected an error for an unrecognized provider")
	}
}

func TestBuildSchemaPrompt_MentionsEveryAllowlistedTable(t *testing.T) {
	// Act
	prompt := buildSchemaPrompt([]string{"sales_fact", "customer_dim"})

	// Assert
	if !strings.Contains(prompt, "sales_fact") || !strings.Contains(prompt, "customer_dim") {
		t.Fatalf("prompt does not mention both tables: %q", prompt)
	}
}

type noopShortCache struct{}

func (noopShortCache) Get(ctx context.Context, key string) *schema.Plan { return nil }
func (noopShortCache) Set(ctx context.Context, key string, plan schema.Plan) {}

type noopHistoryStore struct{}

func (noopHistoryStore) Lookup(ctx context.Context, nlQuery string) (*schema.HistoryEntry, error) {
	return nil, nil
}
func (noopHistoryStore) Store(ctx context.Context, entry schema.HistoryEntry) error { return nil }

func newTestOrchestrator(t *testing.T) *core.Orchestrator {
	t.Helper()

	exec, err := executor.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory executor: %v", err)
	}
	t.Cleanup(func() { exec.Close() })

	val := validator.New(50, []string{"sales_fact"}, nil)
	llm := llmprovider.NewMockProvider()

	p := planner.New(planner.Config{
		ShortCache: noopShortCache{},
		History:    noopHistoryStore{},
		LLM:        llm,
		KeyFunc:    func(s string) string { return s },
	})

	o, err := core.New(core.Config{
		RateLimiter: ratelimit.New(100, 60),
		Validator:   val,
		Planner:     p,
		Executor:    exec,
		History:     noopHistoryStore{},
		ShortCache:  noopShortCache{},
		AuditSink:   audit.NewInMemorySink(),
	})
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o
}

func TestHandler_HealthReturnsOK(t *testing.T) {
	// Arrange
	o := newTestOrchestrator(t)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30})
	handler := newHTTPHandler(o, breaker)

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_ReadyzReportsBreakerState(t *testing.T) {
	// Arrange
	o := newTestOrchestrator(t)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30})
	handler := newHTTPHandler(o, breaker)

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "breaker") {
		t.Fatalf("expected body to report breaker state, got %q", rec.Body.String())
	}
}

func TestHandler_QueryRejectsNonPOST(t *testing.T) {
	// Arrange
	o := newTestOrchestrator(t)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30})
	handler := newHTTPHandler(o, breaker)

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))

	// Assert
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_QueryExecutesRawSQL(t *testing.T) {
	// Arrange
	o := newTestOrchestrator(t)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30})
	handler := newHTTPHandler(o, breaker)

	body, _ := json.Marshal(map[string]interface{}{"query": "SELECT 1 as n", "user_id": "u1"})

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body)))

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
}
