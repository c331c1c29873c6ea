package llmprovider

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/schema"
)

// AnthropicProvider wraps the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	rateTable RateTable
	maxTokens int64
}

// NewAnthropicProvider builds an AnthropicProvider. model defaults to
// Claude 3.5 Sonnet when empty.
func NewAnthropicProvider(apiKey, model string, rateTable RateTable) *AnthropicProvider {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5SonnetLatest
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     m,
		rateTable: rateTable,
		maxTokens: 1024,
	}
}

// Name identifies this provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// GenerateStructured sends prompt with the structured-output
// instruction appended and parses the resulting JSON plan.
func (p *AnthropicProvider) GenerateStructured(ctx context.Context, prompt string) (*schema.Plan, schema.Usage, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt + "\n\n" + promptSchemaInstruction)),
		},
	})
	if err != nil {
		return nil, schema.Usage{}, cerrors.NewProviderFailureError("anthropic: request failed", err)
	}

	var raw string
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}

	ps, err := parsePlanSchema(raw)
	if err != nil {
		return nil, schema.Usage{}, err
	}

	tokensIn := int(msg.Usage.InputTokens)
	tokensOut := int(msg.Usage.OutputTokens)
	usage := schema.Usage{
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		CostUSD:   p.rateTable.cost(string(p.model), tokensIn, tokensOut),
	}

	return &schema.Plan{
		SQL:         ps.SQL,
		Confidence:  ps.Confidence,
		Explanation: ps.Explanation,
		Source:      schema.SourceLLM,
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		CostUSD:     usage.CostUSD,
	}, usage, nil
}
