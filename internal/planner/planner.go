// Package planner orchestrates C4-C9 into a single natural-language
// request: turning a question into a validated SQL plan, consulting
// the two cache tiers before ever reaching the LLM. The planner does
// not validate SQL itself and does not apply confidence gating — both
// remain the orchestrator's job, which keeps this package reusable on
// its own.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/resilience"
	"github.com/entool-router/sqlcore/internal/schema"
)

// ShortCache is the narrow collaborator interface onto C8.
type ShortCache interface {
	Get(ctx context.Context, key string) *schema.Plan
	Set(ctx context.Context, key string, plan schema.Plan)
}

// HistoryStore is the narrow collaborator interface onto C9.
type HistoryStore interface {
	Lookup(ctx context.Context, nlQuery string) (*schema.HistoryEntry, error)
}

// LLMProvider is the narrow collaborator interface onto C4.
type LLMProvider interface {
	GenerateStructured(ctx context.Context, prompt string) (*schema.Plan, schema.Usage, error)
}

// KeyFunc computes the short-term cache key for a natural-language
// query; injected so the planner and cache package share one
// normalization without planner importing cache directly.
type KeyFunc func(nlQuery string) string

// Planner turns a natural-language request into a validated-intent
// Plan, consulting the short-term cache and history store before the
// LLM, per the three-tier read path.
type Planner struct {
	shortCache   ShortCache
	history      HistoryStore
	llm          LLMProvider
	breaker      *resilience.Breaker
	keyFunc      KeyFunc
	llmTimeout   time.Duration
	schemaPrompt string
}

// Config configures a Planner.
type Config struct {
	ShortCache   ShortCache
	History      HistoryStore
	LLM          LLMProvider
	Breaker      *resilience.Breaker
	KeyFunc      KeyFunc
	LLMTimeout   time.Duration
	SchemaPrompt string // fixed schema description + allowlist, embedded in every LLM prompt
}

// New builds a Planner from cfg.
func New(cfg Config) *Planner {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Planner{
		shortCache:   cfg.ShortCache,
		history:      cfg.History,
		llm:          cfg.LLM,
		breaker:      cfg.Breaker,
		keyFunc:      cfg.KeyFunc,
		llmTimeout:   timeout,
		schemaPrompt: cfg.SchemaPrompt,
	}
}

// Plan implements §4.9's algorithm: short cache, then history, then
// the LLM through the timeout wrapper and circuit breaker.
func (p *Planner) Plan(ctx context.Context, nlQuery, correlationID, userID string, bypassCache bool) (*schema.Plan, error) {
	key := p.keyFunc(nlQuery)

	if !bypassCache {
		if cached := p.shortCache.Get(ctx, key); cached != nil {
			plan := *cached
			plan.Source = schema.SourceShortCache
			return &plan, nil
		}
	}

	if !bypassCache {
		entry, err := p.history.Lookup(ctx, nlQuery)
		if err != nil {
			return nil, cerrors.NewPlannerError("provider_failure", "history lookup failed", true, err)
		}
		if entry != nil {
			plan := &schema.Plan{
				SQL:        entry.GeneratedSQL,
				Confidence: entry.Confidence,
				Explanation: fmt.Sprintf(
					"reused from query history (used %d time(s), first answered %s)",
					entry.UseCount, entry.CreatedAt.Format(time.RFC3339),
				),
				Source: schema.SourceHistory,
			}
			p.shortCache.Set(ctx, key, *plan)
			return plan, nil
		}
	}

	prompt := p.buildPrompt(nlQuery)

	var plan *schema.Plan
	var usage schema.Usage
	call := func() (interface{}, error) {
		var innerErr error
		err := resilience.WithTimeout(ctx, p.llmTimeout, func(callCtx context.Context) error {
			var genErr error
			plan, usage, genErr = p.llm.GenerateStructured(callCtx, prompt)
			innerErr = genErr
			return genErr
		})
		if err != nil {
			return nil, err
		}
		return nil, innerErr
	}

	var err error
	if p.breaker != nil {
		_, err = p.breaker.Execute(call)
	} else {
		_, err = call()
	}
	if err != nil {
		return nil, p.classifyLLMError(err)
	}

	plan.TokensIn = usage.TokensIn
	plan.TokensOut = usage.TokensOut
	plan.CostUSD = usage.CostUSD
	plan.Source = schema.SourceLLM
	return plan, nil
}

// classifyLLMError wraps a raised error in a PlannerError whose cause
// distinguishes timeout/circuit_open/schema_violation/provider_failure,
// per §4.9 step 5.
func (p *Planner) classifyLLMError(err error) error {
	switch err.(type) {
	case *cerrors.TimeoutError:
		return cerrors.NewPlannerError("timeout", "LLM call timed out", true, err)
	case *cerrors.CircuitBreakerError:
		return cerrors.NewPlannerError("circuit_open", "LLM circuit breaker is open", true, err)
	case *cerrors.StructuredOutputError:
		return cerrors.NewPlannerError("schema_violation", "LLM response did not conform to schema", false, err)
	case *cerrors.ProviderFailureError:
		return cerrors.NewPlannerError("provider_failure", "LLM provider call failed", true, err)
	default:
		return cerrors.NewPlannerError("provider_failure", "LLM call failed", true, err)
	}
}

func (p *Planner) buildPrompt(nlQuery string) string {
	return fmt.Sprintf("%s\n\nQuestion: %s", p.schemaPrompt, nlQuery)
}

// Explain returns a human-readable description of how a query would be
// planned, without performing the expensive LLM call when a cache or
// history hit is available.
func (p *Planner) Explain(ctx context.Context, nlQuery, correlationID, userID string) (string, error) {
	plan, err := p.Plan(ctx, nlQuery, correlationID, userID, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("source=%s confidence=%.2f sql=%s", plan.Source, plan.Confidence, plan.SQL), nil
}
