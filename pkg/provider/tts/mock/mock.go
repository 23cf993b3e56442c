// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

// Provider is a scriptable mock TTS provider. The default behaviour returns
// the input text bytes as "audio" so tests can assert on content.
type Provider struct {
	mu sync.Mutex

	// ProviderName overrides the reported name. Defaults to "mock".
	ProviderName string

	// Languages restricts SupportsLanguage. A nil map means every language is
	// supported.
	Languages map[string]bool

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// SynthesizeFn, when non-nil, replaces the default behaviour entirely.
	SynthesizeFn func(ctx context.Context, req tts.Request) (*tts.Result, error)

	// Calls records every request received.
	Calls []tts.Request
}

var _ tts.Provider = (*Provider)(nil)

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// SupportsLanguage implements tts.Provider.
func (p *Provider) SupportsLanguage(lang string) bool {
	if p.Languages == nil {
		return true
	}
	return p.Languages[lang]
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn := p.SynthesizeFn
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
	return &tts.Result{
		Audio:          []byte(req.Text),
		Codec:          "wav",
		SampleRate:     22050,
		CharacterCount: len([]rune(req.Text)),
	}, nil
}

// CallCount returns the number of Synthesize calls received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
