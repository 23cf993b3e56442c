// Package mock provides a scriptable asr.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/vaani-ai/vaani/pkg/provider/asr"
)

// Provider is a scriptable mock ASR provider. Configure the exported fields
// before use; all methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result asr.Result

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// TranscribeFn, when non-nil, replaces the default behaviour entirely.
	TranscribeFn func(ctx context.Context, req asr.Request) (*asr.Result, error)

	// Calls records every request received.
	Calls []asr.Request
}

var _ asr.Provider = (*Provider)(nil)

// Name implements asr.Provider.
func (p *Provider) Name() string { return "mock" }

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn := p.TranscribeFn
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

// CallCount returns the number of Transcribe calls received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
