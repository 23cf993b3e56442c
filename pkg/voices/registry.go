// Package voices maintains the catalogue of TTS voices and resolves a
// session's (provider, language, voice) request to a concrete voice.
//
// Resolution is deterministic: the same request against the same catalogue
// always yields the same voice, so cached audio keyed on the resolved voice
// stays valid.
package voices

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FallbackLanguage is the documented last-resort language. Every provider in
// the catalogue carries at least one voice for it.
const FallbackLanguage = "en-IN"

// Voice describes one synthesizable voice.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider the voice belongs to.
	Provider string `json:"provider"`

	// Language is the BCP-47 code the voice speaks.
	Language string `json:"language"`

	// Gender is advisory metadata ("female", "male", "neutral").
	Gender string `json:"gender,omitempty"`
}

// Resolution is the outcome of a voice lookup.
type Resolution struct {
	Voice Voice

	// LanguageDowngraded is set when no voice for the requested language
	// existed anywhere and the en-IN default was substituted.
	LanguageDowngraded bool
}

// Lister fetches the live voice catalogue from a provider, used for the
// periodic refresh that backs the voice-listing API.
type Lister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Option is a functional option for the Registry.
type Option func(*Registry)

// WithLogger sets the logger used for downgrade warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithLister registers a live catalogue source for a provider.
func WithLister(provider string, l Lister) Option {
	return func(r *Registry) { r.listers[provider] = l }
}

// WithRefreshTTL overrides how long a fetched live catalogue is served before
// being refreshed. Defaults to one hour.
func WithRefreshTTL(d time.Duration) Option {
	return func(r *Registry) { r.refreshTTL = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry resolves voice requests against a static catalogue, optionally
// augmented by live provider listings.
type Registry struct {
	mu         sync.Mutex
	static     []Voice
	dynamic    []Voice
	fetchedAt  time.Time
	listers    map[string]Lister
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger

	// providerOrder fixes the fallback search order across providers.
	providerOrder []string
}

// New creates a Registry seeded with the built-in catalogue.
func New(opts ...Option) *Registry {
	r := &Registry{
		static:        builtinCatalogue(),
		listers:       map[string]Lister{},
		refreshTTL:    time.Hour,
		now:           time.Now,
		logger:        slog.Default(),
		providerOrder: []string{"sarvam", "elevenlabs"},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve finds the voice to use for a request. The search runs in four
// steps: exact (provider, language, voiceID) match; first voice for
// (provider, language); first voice for the language on any provider in
// fallback order; and finally the en-IN default, reported as a language
// downgrade.
func (r *Registry) Resolve(provider, language, voiceID string) Resolution {
	catalogue := r.snapshot()

	if voiceID != "" {
		for _, v := range catalogue {
			if v.Provider == provider && v.Language == language && v.ID == voiceID {
				return Resolution{Voice: v}
			}
		}
	}

	if v, ok := firstMatch(catalogue, provider, language); ok {
		return Resolution{Voice: v}
	}

	for _, p := range r.providerOrder {
		if p == provider {
			continue
		}
		if v, ok := firstMatch(catalogue, p, language); ok {
			return Resolution{Voice: v}
		}
	}

	r.logger.Warn("no voice for language, downgrading",
		"provider", provider, "language", language, "fallback", FallbackLanguage)
	for _, p := range append([]string{provider}, r.providerOrder...) {
		if v, ok := firstMatch(catalogue, p, FallbackLanguage); ok {
			return Resolution{Voice: v, LanguageDowngraded: true}
		}
	}

	// The built-in catalogue guarantees an en-IN entry, so this is only
	// reachable with an empty custom catalogue.
	return Resolution{Voice: Voice{}, LanguageDowngraded: true}
}

// List returns the full catalogue, refreshing live provider listings when
// they are older than the refresh TTL. Fetch failures are logged and the
// previous catalogue is served.
func (r *Registry) List(ctx context.Context) []Voice {
	r.mu.Lock()
	stale := len(r.listers) > 0 && r.now().Sub(r.fetchedAt) >= r.refreshTTL
	r.mu.Unlock()

	if stale {
		r.refresh(ctx)
	}
	return r.snapshot()
}

func (r *Registry) refresh(ctx context.Context) {
	var fetched []Voice
	for provider, lister := range r.listers {
		vs, err := lister.ListVoices(ctx)
		if err != nil {
			r.logger.Warn("voice catalogue refresh failed", "provider", provider, "error", err)
			return
		}
		fetched = append(fetched, vs...)
	}

	r.mu.Lock()
	r.dynamic = fetched
	r.fetchedAt = r.now()
	r.mu.Unlock()
}

func (r *Registry) snapshot() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Voice, 0, len(r.static)+len(r.dynamic))
	out = append(out, r.static...)
	out = append(out, r.dynamic...)
	return out
}

func firstMatch(catalogue []Voice, provider, language string) (Voice, bool) {
	for _, v := range catalogue {
		if v.Provider == provider && v.Language == language {
			return v, true
		}
	}
	return Voice{}, false
}

// builtinCatalogue is the static voice set. Sarvam Bulbul speakers cover the
// Indic languages; a pair of ElevenLabs voices backs the fallback chain.
func builtinCatalogue() []Voice {
	sarvamLangs := []string{
		"hi-IN", "bn-IN", "ta-IN", "te-IN", "gu-IN", "kn-IN",
		"ml-IN", "mr-IN", "pa-IN", "od-IN", "en-IN",
	}
	var out []Voice
	for _, lang := range sarvamLangs {
		out = append(out,
			Voice{ID: "anushka", Name: "Anushka", Provider: "sarvam", Language: lang, Gender: "female"},
			Voice{ID: "abhilash", Name: "Abhilash", Provider: "sarvam", Language: lang, Gender: "male"},
			Voice{ID: "manisha", Name: "Manisha", Provider: "sarvam", Language: lang, Gender: "female"},
		)
	}
	out = append(out,
		Voice{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Provider: "elevenlabs", Language: "en-IN", Gender: "female"},
		Voice{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Provider: "elevenlabs", Language: "en-IN", Gender: "male"},
		Voice{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Provider: "elevenlabs", Language: "hi-IN", Gender: "male"},
	)
	return out
}
