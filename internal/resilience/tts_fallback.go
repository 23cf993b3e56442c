package resilience

import (
	"context"
	"fmt"

	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker. Backends that do not
// support the requested language are skipped without tripping their breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(provider tts.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Synthesize routes the request to the first healthy provider that supports
// the requested language.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	res, _, err := f.SynthesizeWith(ctx, req)
	return res, err
}

// SynthesizeWith is Synthesize plus the name of the provider that actually
// served the request, so callers can attribute cost and count fallbacks.
func (f *TTSFallback) SynthesizeWith(ctx context.Context, req tts.Request) (*tts.Result, string, error) {
	var lastErr error
	supported := 0
	for i := range f.group.entries {
		entry := &f.group.entries[i]
		if req.Language != "" && !entry.value.SupportsLanguage(req.Language) {
			continue
		}
		supported++

		var res *tts.Result
		err := entry.breaker.Execute(func() error {
			var innerErr error
			res, innerErr = entry.value.Synthesize(ctx, req)
			return innerErr
		})
		if err == nil {
			return res, entry.name, nil
		}
		lastErr = err
	}
	if supported == 0 {
		return nil, "", fmt.Errorf("resilience: no TTS provider supports language %q", req.Language)
	}
	return nil, "", fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// SupportsLanguage reports whether any registered backend can synthesize the
// given language.
func (f *TTSFallback) SupportsLanguage(lang string) bool {
	for i := range f.group.entries {
		if f.group.entries[i].value.SupportsLanguage(lang) {
			return true
		}
	}
	return false
}

// Name returns the primary backend's name.
func (f *TTSFallback) Name() string {
	return f.group.entries[0].name
}
