package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vaani-ai/vaani/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello world"},
		{"  hello   world  ", "hello world"},
		{"HELLO\tworld\n", "hello world"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLLMKey_TierIsPartOfKey(t *testing.T) {
	a := LLMKey("what is my balance", types.TierQuality)
	b := LLMKey("what is my balance", types.TierSpeed)
	if a == b {
		t.Error("keys for different tiers must differ")
	}
	if a != LLMKey("  What IS my   balance ", types.TierQuality) {
		t.Error("key must be insensitive to casing and spacing")
	}
}

func TestGetExact(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLLMCache(WithLLMClock(func() time.Time { return now }))

	c.Put("what is my balance", types.TierBalanced, "Your balance is...", time.Hour)

	hit, ok := c.GetExact("What is my Balance", types.TierBalanced)
	if !ok {
		t.Fatal("expected exact hit")
	}
	if hit.Kind != HitExact || hit.Response != "Your balance is..." || hit.Score != 1 {
		t.Errorf("hit = %+v", hit)
	}

	if _, ok := c.GetExact("what is my balance", types.TierSpeed); ok {
		t.Error("hit across tiers")
	}
}

func TestGetExact_TTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLLMCache(WithLLMClock(func() time.Time { return now }))

	c.Put("hello", types.TierBalanced, "hi", time.Minute)
	now = now.Add(time.Minute + time.Second)

	if _, ok := c.GetExact("hello", types.TierBalanced); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expiry, want 0", c.Len())
	}
}

func TestGetSemantic_ThresholdBoundary(t *testing.T) {
	c := NewLLMCache()
	// Word sets {a b c d} vs {a b c e}: |∩|=3, |∪|=5, score 0.6.
	c.Put("a b c d", types.TierQuality, "cached answer", time.Hour)

	hit, ok := c.GetSemantic("a b c e", types.TierQuality, 0.6)
	if !ok {
		t.Fatal("score equal to threshold must hit")
	}
	if hit.Kind != HitSemantic {
		t.Errorf("kind = %q, want semantic", hit.Kind)
	}
	if hit.Score != 0.6 {
		t.Errorf("score = %v, want 0.6", hit.Score)
	}

	if _, ok := c.GetSemantic("a b c e", types.TierQuality, 0.61); ok {
		t.Error("score below threshold must miss")
	}
}

func TestGetSemantic_TierGated(t *testing.T) {
	c := NewLLMCache()
	c.Put("a b c d", types.TierSpeed, "speedy", time.Hour)

	if _, ok := c.GetSemantic("a b c d", types.TierQuality, 0.5); ok {
		t.Error("semantic lookup crossed tiers")
	}
}

func TestGetSemantic_TieBreaksToMostRecent(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLLMCache(WithLLMClock(func() time.Time { return now }))

	c.Put("a b c d", types.TierQuality, "older", time.Hour)
	now = now.Add(time.Second)
	c.Put("a b c x", types.TierQuality, "newer", time.Hour)

	// Query equidistant from both entries.
	hit, ok := c.GetSemantic("a b c q", types.TierQuality, 0.5)
	if !ok {
		t.Fatal("expected semantic hit")
	}
	if hit.Response != "newer" {
		t.Errorf("response = %q, want the more recent entry", hit.Response)
	}
}

func TestGetSemantic_ScanBounded(t *testing.T) {
	c := NewLLMCache()
	c.Put("needle words here now", types.TierBalanced, "found", time.Hour)
	for i := 0; i < semanticScanLimit; i++ {
		c.Put("filler entry number "+string(rune('a'+i%26))+string(rune('a'+i/26)),
			types.TierBalanced, "filler", time.Hour)
	}

	// The matching entry is now older than the scan window.
	if _, ok := c.GetSemantic("needle words here now", types.TierBalanced, 0.9); ok {
		t.Error("entry outside the scan window was found")
	}
}

func TestGenerate_SingleFlight(t *testing.T) {
	c := NewLLMCache()

	var mu sync.Mutex
	calls := 0
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Generate("same-key", func() (string, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				<-release
				return "generated", nil
			})
			if err != nil {
				t.Errorf("Generate: %v", err)
			}
			results[i] = got
		}(i)
	}

	// Give the goroutines a moment to pile onto the key.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	for i, r := range results {
		if r != "generated" {
			t.Errorf("results[%d] = %q", i, r)
		}
	}
}

func TestGenerate_ErrorPropagates(t *testing.T) {
	c := NewLLMCache()
	wantErr := errors.New("backend down")
	if _, err := c.Generate("k", func() (string, error) { return "", wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
