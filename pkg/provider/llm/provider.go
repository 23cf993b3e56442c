// Package llm defines the Provider interface for chat-completion backends.
//
// The turn orchestrator consumes LLMs through a deliberately narrow
// capability set — generate(messages, temperature, max_tokens) plus static
// model metadata — so provider-specific request/response translation lives
// entirely inside the adapters (sarvam, anyllm), never in the orchestrator.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"
	"strings"

	"github.com/vaani-ai/vaani/pkg/types"
)

// GenerateRequest carries everything the model needs for one completion.
type GenerateRequest struct {
	// System is the system prompt, already carrying any guardrail
	// augmentation. Adapters map it to the provider's native system field.
	System string

	// Messages is the ordered conversation history; the last message drives
	// the response.
	Messages []types.Message

	// Temperature controls randomness in [0, 2].
	Temperature float64

	// MaxTokens caps completion length. Zero means the model's output cap.
	MaxTokens int

	// SessionID and TurnID are forwarded for provider-side request tracing.
	SessionID string
	TurnID    string
}

// GenerateResult is the model's reply plus token accounting.
type GenerateResult struct {
	Text string

	InputTokens  int
	OutputTokens int

	// FinishReason is "stop", "length", or a provider-specific value.
	FinishReason string
}

// ModelInfo is the static metadata table entry for one model. The values are
// assumed constant for the lifetime of a Provider instance.
type ModelInfo struct {
	ID            string
	Provider      string
	ContextWindow int
	MaxOutput     int

	// InputPricePerMTok and OutputPricePerMTok are USD prices per million
	// tokens, kept as strings so the cost recorder can parse them into exact
	// decimals.
	InputPricePerMTok  string
	OutputPricePerMTok string

	SupportsStreaming bool
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Generate sends req to the model and waits for the full response.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// ModelInfo returns static metadata for the configured model.
	ModelInfo() ModelInfo

	// Name returns the provider identifier used in cost entries and metrics.
	Name() string
}

// Catalog lists the models this build knows how to drive, per provider.
// Served by the /llm/models RPC and used to seed pricing tables.
var Catalog = []ModelInfo{
	{ID: "sarvam-m", Provider: "sarvam", ContextWindow: 32_768, MaxOutput: 4_096,
		InputPricePerMTok: "0.10", OutputPricePerMTok: "0.30", SupportsStreaming: true},
	{ID: "gpt-4o-mini", Provider: "openai", ContextWindow: 128_000, MaxOutput: 16_384,
		InputPricePerMTok: "0.15", OutputPricePerMTok: "0.60", SupportsStreaming: true},
	{ID: "gpt-4o", Provider: "openai", ContextWindow: 128_000, MaxOutput: 16_384,
		InputPricePerMTok: "2.50", OutputPricePerMTok: "10.00", SupportsStreaming: true},
	{ID: "claude-3-5-haiku-latest", Provider: "anthropic", ContextWindow: 200_000, MaxOutput: 8_192,
		InputPricePerMTok: "0.80", OutputPricePerMTok: "4.00", SupportsStreaming: true},
	{ID: "claude-3-5-sonnet-latest", Provider: "anthropic", ContextWindow: 200_000, MaxOutput: 8_192,
		InputPricePerMTok: "3.00", OutputPricePerMTok: "15.00", SupportsStreaming: true},
}

// LookupModel finds catalog metadata for model, falling back to conservative
// defaults for unknown models so an unlisted model never breaks generation.
func LookupModel(model string) ModelInfo {
	lower := strings.ToLower(model)
	for _, mi := range Catalog {
		if strings.ToLower(mi.ID) == lower {
			return mi
		}
	}
	return ModelInfo{
		ID:                 model,
		ContextWindow:      128_000,
		MaxOutput:          4_096,
		InputPricePerMTok:  "1.00",
		OutputPricePerMTok: "3.00",
		SupportsStreaming:  true,
	}
}
