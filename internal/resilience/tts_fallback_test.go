package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vaani-ai/vaani/pkg/provider/tts"
	ttsmock "github.com/vaani-ai/vaani/pkg/provider/tts/mock"
)

func TestTTSFallback_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "sarvam"}
	secondary := &ttsmock.Provider{ProviderName: "elevenlabs"}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	res, served, err := fb.SynthesizeWith(context.Background(), tts.Request{Text: "hello", Language: "en-IN"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "hello" {
		t.Errorf("audio = %q, want hello", res.Audio)
	}
	if served != "sarvam" {
		t.Errorf("served by %q, want sarvam", served)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.CallCount(), secondary.CallCount())
	}
}

func TestTTSFallback_Failover(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "sarvam", Err: errors.New("primary down")}
	secondary := &ttsmock.Provider{ProviderName: "elevenlabs"}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	res, served, err := fb.SynthesizeWith(context.Background(), tts.Request{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "elevenlabs" {
		t.Errorf("served by %q, want elevenlabs", served)
	}
	if string(res.Audio) != "hello" {
		t.Errorf("audio = %q", res.Audio)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("primary down")}
	secondary := &ttsmock.Provider{ProviderName: "second", Err: errors.New("secondary down")}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	if _, err := fb.Synthesize(context.Background(), tts.Request{Text: "x"}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_SkipsUnsupportedLanguage(t *testing.T) {
	primary := &ttsmock.Provider{
		ProviderName: "elevenlabs",
		Languages:    map[string]bool{"en-IN": true},
	}
	secondary := &ttsmock.Provider{ProviderName: "sarvam"}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	_, served, err := fb.SynthesizeWith(context.Background(), tts.Request{Text: "नमस्ते", Language: "hi-IN"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "sarvam" {
		t.Errorf("served by %q, want sarvam", served)
	}
	// The unsupported primary is skipped, not failed.
	if primary.CallCount() != 0 {
		t.Errorf("primary called %d times, want 0", primary.CallCount())
	}
}

func TestTTSFallback_NoProviderForLanguage(t *testing.T) {
	primary := &ttsmock.Provider{Languages: map[string]bool{"en-IN": true}}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, _, err := fb.SynthesizeWith(context.Background(), tts.Request{Text: "x", Language: "fr-FR"})
	if err == nil || !strings.Contains(err.Error(), "fr-FR") {
		t.Fatalf("err = %v, want unsupported-language error naming fr-FR", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Error("unsupported language should not count as provider failure")
	}
}

func TestTTSFallback_SupportsLanguageUnion(t *testing.T) {
	primary := &ttsmock.Provider{Languages: map[string]bool{"en-IN": true}}
	secondary := &ttsmock.Provider{ProviderName: "second", Languages: map[string]bool{"hi-IN": true}}

	fb := NewTTSFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	for lang, want := range map[string]bool{"en-IN": true, "hi-IN": true, "fr-FR": false} {
		if got := fb.SupportsLanguage(lang); got != want {
			t.Errorf("SupportsLanguage(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestTTSFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "sarvam", Err: errors.New("down")}
	secondary := &ttsmock.Provider{ProviderName: "elevenlabs"}

	fb := NewTTSFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback(secondary)

	for i := 0; i < 3; i++ {
		if _, err := fb.Synthesize(context.Background(), tts.Request{Text: "x"}); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	// Two failures open the primary's breaker; the third request must not
	// reach it.
	if primary.CallCount() != 2 {
		t.Errorf("primary called %d times, want 2", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Errorf("secondary called %d times, want 3", secondary.CallCount())
	}
}
