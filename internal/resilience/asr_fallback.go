package resilience

import (
	"context"

	"github.com/vaani-ai/vaani/pkg/provider/asr"
)

// ASRFallback implements [asr.Provider] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred backend.
func NewASRFallback(primary asr.Provider, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *ASRFallback) AddFallback(provider asr.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Transcribe sends the utterance to the first healthy provider. If the primary
// fails, subsequent fallbacks are tried.
func (f *ASRFallback) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) (*asr.Result, error) {
		return p.Transcribe(ctx, req)
	})
}

// Name returns the primary backend's name.
func (f *ASRFallback) Name() string {
	return f.group.entries[0].name
}
