package llmprovider

import (
	"context"
	"sync"

	"github.com/entool-router/sqlcore/internal/schema"
)

// MockProvider returns a caller-supplied canned plan or error. It is
// first-class production code, not test-only: spec.md §4.3 requires a
// Mock implementation as one of the vendor choices.
type MockProvider struct {
	mu        sync.Mutex
	callCount int

	plan *schema.Plan
	err  error
}

// NewMockProvider builds a MockProvider with no canned response set;
// configure it with SetPlan or SetError before use.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name identifies this provider.
func (m *MockProvider) Name() string { return "mock" }

// SetPlan configures the plan returned by every subsequent call.
func (m *MockProvider) SetPlan(plan schema.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan.Source = schema.SourceLLM
	m.plan = &plan
	m.err = nil
}

// SetError configures the error returned by every subsequent call.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.plan = nil
}

// CallCount reports how many times GenerateStructured has been
// invoked — used by tests asserting "no LLM call occurred" on a
// cache/history hit.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GenerateStructured returns the configured canned plan or error.
func (m *MockProvider) GenerateStructured(ctx context.Context, prompt string) (*schema.Plan, schema.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++

	if m.err != nil {
		return nil, schema.Usage{}, m.err
	}
	if m.plan == nil {
		return nil, schema.Usage{}, nil
	}
	plan := *m.plan
	usage := schema.Usage{TokensIn: plan.TokensIn, TokensOut: plan.TokensOut, CostUSD: plan.CostUSD}
	return &plan, usage, nil
}
