package voices

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolve_ExactMatch(t *testing.T) {
	r := New()
	res := r.Resolve("sarvam", "hi-IN", "manisha")
	if res.Voice.ID != "manisha" || res.Voice.Provider != "sarvam" {
		t.Errorf("Resolve = %+v, want manisha on sarvam", res.Voice)
	}
	if res.LanguageDowngraded {
		t.Error("unexpected downgrade on exact match")
	}
}

func TestResolve_FirstForProviderLanguage(t *testing.T) {
	r := New()
	res := r.Resolve("sarvam", "ta-IN", "no-such-voice")
	if res.Voice.Language != "ta-IN" || res.Voice.Provider != "sarvam" {
		t.Errorf("Resolve = %+v, want first sarvam ta-IN voice", res.Voice)
	}
}

func TestResolve_FallbackProvider(t *testing.T) {
	r := New()
	// ElevenLabs carries no ta-IN voice, so the search falls through to the
	// other provider without a language downgrade.
	res := r.Resolve("elevenlabs", "ta-IN", "")
	if res.Voice.Provider != "sarvam" || res.Voice.Language != "ta-IN" {
		t.Errorf("Resolve = %+v, want sarvam ta-IN via provider fallback", res.Voice)
	}
	if res.LanguageDowngraded {
		t.Error("provider fallback must not report a language downgrade")
	}
}

func TestResolve_LanguageDowngrade(t *testing.T) {
	r := New()
	res := r.Resolve("sarvam", "fr-FR", "")
	if !res.LanguageDowngraded {
		t.Fatal("expected language downgrade for fr-FR")
	}
	if res.Voice.Language != FallbackLanguage {
		t.Errorf("downgraded voice language = %q, want %q", res.Voice.Language, FallbackLanguage)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := New()
	a := r.Resolve("sarvam", "hi-IN", "")
	b := r.Resolve("sarvam", "hi-IN", "")
	if a != b {
		t.Errorf("Resolve not deterministic: %+v vs %+v", a, b)
	}
}

type fakeLister struct {
	voices []Voice
	err    error
	calls  int
}

func (f *fakeLister) ListVoices(context.Context) ([]Voice, error) {
	f.calls++
	return f.voices, f.err
}

func TestList_RefreshesOncePerTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	lister := &fakeLister{voices: []Voice{
		{ID: "live-1", Provider: "elevenlabs", Language: "en-IN"},
	}}
	r := New(
		WithLister("elevenlabs", lister),
		WithClock(func() time.Time { return now }),
	)

	first := r.List(context.Background())
	if lister.calls != 1 {
		t.Fatalf("calls after first List = %d, want 1", lister.calls)
	}
	if !containsID(first, "live-1") {
		t.Error("live voice missing from catalogue")
	}

	r.List(context.Background())
	if lister.calls != 1 {
		t.Errorf("calls within TTL = %d, want 1", lister.calls)
	}

	now = now.Add(time.Hour + time.Second)
	r.List(context.Background())
	if lister.calls != 2 {
		t.Errorf("calls after TTL = %d, want 2", lister.calls)
	}
}

func TestList_FetchFailureKeepsPrevious(t *testing.T) {
	now := time.Unix(1000, 0)
	lister := &fakeLister{voices: []Voice{{ID: "live-1", Provider: "elevenlabs", Language: "en-IN"}}}
	r := New(
		WithLister("elevenlabs", lister),
		WithClock(func() time.Time { return now }),
	)

	r.List(context.Background())
	lister.err = errors.New("upstream down")
	now = now.Add(2 * time.Hour)

	got := r.List(context.Background())
	if !containsID(got, "live-1") {
		t.Error("previous live catalogue dropped after failed refresh")
	}
}

func containsID(vs []Voice, id string) bool {
	for _, v := range vs {
		if v.ID == id {
			return true
		}
	}
	return false
}
