// Package mock provides a scriptable translate.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/vaani-ai/vaani/pkg/provider/translate"
)

// Provider is a scriptable mock translation provider. The default behaviour
// echoes the input prefixed with the target language, which keeps placeholder
// round-trip tests honest without a real translator.
type Provider struct {
	mu sync.Mutex

	// Err, when non-nil, is returned by every Translate call.
	Err error

	// TranslateFn, when non-nil, replaces the default behaviour entirely.
	TranslateFn func(ctx context.Context, req translate.Request) (*translate.Result, error)

	// Calls records every request received.
	Calls []translate.Request
}

var _ translate.Provider = (*Provider)(nil)

// Name implements translate.Provider.
func (p *Provider) Name() string { return "mock" }

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn := p.TranslateFn
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
	return &translate.Result{
		Text:      "[" + req.TargetLang + "] " + req.Text,
		CharCount: len([]rune(req.Text)),
	}, nil
}

// CallCount returns the number of Translate calls received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
