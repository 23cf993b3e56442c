// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/vaani-ai/vaani/pkg/provider/llm"
)

// Provider is a scriptable mock LLM provider. Configure the exported fields
// before use; all methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Generate when Err is nil.
	Result llm.GenerateResult

	// Err, when non-nil, is returned by every Generate call.
	Err error

	// GenerateFn, when non-nil, replaces the default behaviour entirely.
	GenerateFn func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error)

	// Info is returned by ModelInfo.
	Info llm.ModelInfo

	// Calls records every request received.
	Calls []llm.GenerateRequest
}

var _ llm.Provider = (*Provider)(nil)

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// ModelInfo implements llm.Provider.
func (p *Provider) ModelInfo() llm.ModelInfo {
	if p.Info.ID == "" {
		return llm.ModelInfo{
			ID: "mock-1", Provider: "mock", ContextWindow: 128_000, MaxOutput: 4096,
			InputPricePerMTok: "1.00", OutputPricePerMTok: "3.00",
		}
	}
	return p.Info
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn := p.GenerateFn
	res := p.Result
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	out := res
	return &out, nil
}

// CallCount returns the number of Generate calls received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
