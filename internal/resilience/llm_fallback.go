package resilience

import (
	"context"

	"github.com/vaani-ai/vaani/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across multiple
// LLM backends. Each backend has its own circuit breaker; when the primary fails
// or its breaker is open, the next healthy fallback is tried.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(provider llm.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Generate sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *LLMFallback) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.GenerateResult, error) {
		return p.Generate(ctx, req)
	})
}

// ModelInfo returns the primary backend's model metadata. This does not
// participate in failover because model metadata is static.
func (f *LLMFallback) ModelInfo() llm.ModelInfo {
	return f.group.entries[0].value.ModelInfo()
}

// Name returns the primary backend's name.
func (f *LLMFallback) Name() string {
	return f.group.entries[0].name
}
