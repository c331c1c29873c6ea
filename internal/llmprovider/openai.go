package llmprovider

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/schema"
)

// OpenAIProvider wraps the OpenAI chat-completions API. The same client
// also backs the OpenRouter vendor: OpenRouter speaks the OpenAI wire
// format, so pointing BaseURL at OpenRouter's endpoint and using an
// OpenRouter-issued key reuses this provider without modification.
type OpenAIProvider struct {
	client    openai.Client
	model     openai.ChatModel
	name      string
	rateTable RateTable
}

// NewOpenAIProvider builds an OpenAIProvider talking to the default
// OpenAI endpoint.
func NewOpenAIProvider(apiKey, model string, rateTable RateTable) *OpenAIProvider {
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4o
	}
	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     m,
		name:      "openai",
		rateTable: rateTable,
	}
}

// NewOpenRouterProvider builds an OpenAIProvider pointed at OpenRouter's
// OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, baseURL, model string, rateTable RateTable) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		model:     openai.ChatModel(model),
		name:      "openrouter",
		rateTable: rateTable,
	}
}

// Name identifies this provider ("openai" or "openrouter").
func (p *OpenAIProvider) Name() string { return p.name }

// GenerateStructured sends prompt with the structured-output
// instruction appended and parses the resulting JSON plan.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, prompt string) (*schema.Plan, schema.Usage, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt + "\n\n" + promptSchemaInstruction),
		},
	})
	if err != nil {
		return nil, schema.Usage{}, cerrors.NewProviderFailureError(p.name+": request failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, schema.Usage{}, cerrors.NewStructuredOutputError(p.name+": no choices in response", nil)
	}

	raw := resp.Choices[0].Message.Content
	ps, err := parsePlanSchema(raw)
	if err != nil {
		return nil, schema.Usage{}, err
	}

	tokensIn := int(resp.Usage.PromptTokens)
	tokensOut := int(resp.Usage.CompletionTokens)
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
