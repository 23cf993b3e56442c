// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/vaani-ai/vaani/pkg/provider/embeddings"
)

// Provider is a scriptable mock embeddings provider. The default Embed
// behaviour derives a deterministic vector from the input text so tests can
// exercise similarity search without canned fixtures.
type Provider struct {
	mu sync.Mutex

	// EmbedResult, when non-nil, is returned by every Embed call.
	EmbedResult []float32

	// EmbedFn, when non-nil, replaces the default behaviour entirely.
	EmbedFn func(ctx context.Context, text string) ([]float32, error)

	// Err, when non-nil, is returned by Embed and EmbedBatch.
	Err error

	// Dims overrides the reported dimensionality. Defaults to 8.
	Dims int

	// Calls records every text passed to Embed or EmbedBatch.
	Calls []string
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, text)
	fn := p.EmbedFn
	fixed := p.EmbedResult
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	if fixed != nil {
		return fixed, nil
	}
	return p.derive(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embed-v1" }

// derive builds a stable vector from character counts. Texts sharing words
// produce nearby vectors, which is enough for ranking tests.
func (p *Provider) derive(text string) []float32 {
	vec := make([]float32, p.Dimensions())
	for i, r := range text {
		vec[i%len(vec)] += float32(r%31) / 31
	}
	return vec
}

// CallCount returns the number of texts embedded.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
