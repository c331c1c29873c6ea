// Package llmprovider is the uniform interface over multiple remote
// model vendors (C4). Implementations are a flat capability set —
// generate_structured — never an inheritance tree. One vendor is
// selected at startup by configuration (cmd/sqlcoregw's buildProvider)
// and handed to the planner.
package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/schema"
)

// Provider is the single operation every vendor implements.
type Provider interface {
	Name() string
	GenerateStructured(ctx context.Context, prompt string) (*schema.Plan, schema.Usage, error)
}

// Registry holds the configured providers, named exactly like the
// engine-adapter registry this package's shape is modeled on.
type Registry struct {
	providers map[string]Provider
	active    string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// SetActive designates which registered provider future calls use.
func (r *Registry) SetActive(name string) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("llmprovider: no provider registered with name %q", name)
	}
	r.active = name
	return nil
}

// Active returns the currently selected provider.
func (r *Registry) Active() (Provider, error) {
	p, ok := r.providers[r.active]
	if !ok {
		return nil, fmt.Errorf("llmprovider: no active provider configured")
	}
	return p, nil
}

// promptSchemaInstruction is appended to every vendor call: it demands
// JSON matching PlanSchema and nothing else.
const promptSchemaInstruction = `You must respond with a single JSON object and no other text, matching exactly this shape:
{"sql": "<a SELECT statement containing a LIMIT clause>", "confidence": <number between 0 and 1>, "explanation": "<short human-readable explanation>"}`

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

var planLimitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)

// parsePlanSchema extracts and validates the JSON object a vendor
// returned against PlanSchema's required fields.
func parsePlanSchema(raw string) (*schema.PlanSchema, error) {
	candidate := jsonObjectRe.FindString(raw)
	if candidate == "" {
		return nil, cerrors.NewStructuredOutputError("no JSON object found in LLM response", nil)
	}

	var ps schema.PlanSchema
	if err := json.Unmarshal([]byte(candidate), &ps); err != nil {
		return nil, cerrors.NewStructuredOutputError("malformed JSON in LLM response", err)
	}
	if strings.TrimSpace(ps.SQL) == "" {
		return nil, cerrors.NewStructuredOutputError("schema violation: sql is empty", nil)
	}
	if strings.TrimSpace(ps.Explanation) == "" {
		return nil, cerrors.NewStructuredOutputError("schema violation: explanation is empty", nil)
	}
	if ps.Confidence < 0 || ps.Confidence > 1 {
		return nil, cerrors.NewStructuredOutputError("schema violation: confidence out of [0,1]", nil)
	}
	if !planLimitRe.MatchString(ps.SQL) {
		return nil, cerrors.NewStructuredOutputError("schema violation: sql has no LIMIT clause", nil)
	}
	return &ps, nil
}

// RateTable maps a model name to its per-million-token input/output
// cost in USD, used to compute Usage.CostUSD.
type RateTable map[string]ModelRate

// ModelRate is the per-million-token cost for one model.
type ModelRate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultRateTable is a representative (not authoritative) per-model
// rate table. cmd/sqlcoregw passes it to every vendor provider; no
// configuration key overrides it, and models not listed cost 0.
var DefaultRateTable = RateTable{
	"claude-3-5-sonnet-latest": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"gpt-4o":                   {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":              {InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

func (t RateTable) cost(model string, tokensIn, tokensOut int) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1_000_000*rate.InputPerMillion + float64(tokensOut)/1_000_000*rate.OutputPerMillion
}
