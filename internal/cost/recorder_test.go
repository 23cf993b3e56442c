package cost

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/pkg/types"
)

func TestASRCost(t *testing.T) {
	// 60 seconds at 0.000833/s.
	got := ASRCost("sarvam", 60_000)
	want := decimal.RequireFromString("0.04998")
	if !got.Equal(want) {
		t.Errorf("ASRCost = %s, want %s", got, want)
	}
}

func TestLLMCost(t *testing.T) {
	// gpt-4o-mini: 0.15/M in, 0.60/M out.
	got := LLMCost("gpt-4o-mini", 1000, 500)
	want := decimal.RequireFromString("0.00045")
	if !got.Equal(want) {
		t.Errorf("LLMCost = %s, want %s", got, want)
	}
}

func TestUnknownProviderUsesHighestRate(t *testing.T) {
	known := TTSCost("elevenlabs", 100)
	unknown := TTSCost("no-such-provider", 100)
	if !unknown.Equal(known) {
		t.Errorf("unknown provider rate = %s, want the highest known %s", unknown, known)
	}
}

func TestRecord_RoundsHalfEven(t *testing.T) {
	r := New()
	// 0.0000005 is exactly half way; half-even rounds to 0.000000.
	entry := r.Record(context.Background(), types.CostEntry{
		SessionID: "s1", Service: types.ServiceTTS, Provider: "sarvam",
	}, decimal.RequireFromString("0.0000005"))
	if !entry.Cost.Equal(decimal.Zero) {
		t.Errorf("cost = %s, want 0 under half-even", entry.Cost)
	}

	entry = r.Record(context.Background(), types.CostEntry{
		SessionID: "s1", Service: types.ServiceTTS, Provider: "sarvam",
	}, decimal.RequireFromString("0.0000015"))
	if !entry.Cost.Equal(decimal.RequireFromString("0.000002")) {
		t.Errorf("cost = %s, want 0.000002 under half-even", entry.Cost)
	}
}

func TestRecord_CachedZeroCostWithCounterfactual(t *testing.T) {
	r := New()
	raw := decimal.RequireFromString("0.001234")
	entry := r.Record(context.Background(), types.CostEntry{
		SessionID: "s1", TurnID: "t1", Service: types.ServiceLLM,
		Provider: "sarvam", Cached: true,
	}, raw)

	if !entry.Cost.IsZero() {
		t.Errorf("cached cost = %s, want 0", entry.Cost)
	}
	if got := entry.Metadata["counterfactual_cost_usd"]; got != "0.001234" {
		t.Errorf("counterfactual = %q, want 0.001234", got)
	}

	sum := r.Summarize("s1")
	if !sum.TotalUSD.IsZero() {
		t.Errorf("total = %s, want 0", sum.TotalUSD)
	}
	if !sum.CacheSavingsUSD.Equal(raw) {
		t.Errorf("savings = %s, want %s", sum.CacheSavingsUSD, raw)
	}
}

func TestSummarize_Aggregates(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Record(ctx, types.CostEntry{SessionID: "s1", Service: types.ServiceASR, Provider: "sarvam"},
		decimal.RequireFromString("0.01"))
	r.Record(ctx, types.CostEntry{SessionID: "s1", Service: types.ServiceLLM, Provider: "openai"},
		decimal.RequireFromString("0.02"))
	r.Record(ctx, types.CostEntry{SessionID: "s2", Service: types.ServiceLLM, Provider: "openai"},
		decimal.RequireFromString("0.99"))

	sum := r.Summarize("s1")
	if !sum.TotalUSD.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("total = %s, want 0.03", sum.TotalUSD)
	}
	if !sum.ByService["asr"].Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("by_service[asr] = %s", sum.ByService["asr"])
	}
	if !sum.ByProvider["openai"].Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("by_provider[openai] = %s", sum.ByProvider["openai"])
	}
	if len(sum.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(sum.Entries))
	}
}

type failingRepo struct{ calls int }

func (f *failingRepo) AppendCostEntry(context.Context, types.CostEntry) error {
	f.calls++
	return errors.New("db down")
}

func TestRecord_RepositoryFailureDoesNotFail(t *testing.T) {
	repo := &failingRepo{}
	r := New(WithRepository(repo))

	entry := r.Record(context.Background(), types.CostEntry{
		SessionID: "s1", Service: types.ServiceASR, Provider: "sarvam",
	}, decimal.RequireFromString("0.01"))

	if repo.calls != 1 {
		t.Errorf("repo calls = %d, want 1", repo.calls)
	}
	if !entry.Cost.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("cost = %s despite repo failure", entry.Cost)
	}
	if !r.TotalUSD("s1").Equal(decimal.RequireFromString("0.01")) {
		t.Error("in-memory aggregate lost on repo failure")
	}
}

func TestRecord_ConcurrentSessions(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		sid := string(rune('a' + s))
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(sid string) {
				defer wg.Done()
				r.Record(context.Background(), types.CostEntry{
					SessionID: sid, Service: types.ServiceTTS, Provider: "sarvam",
				}, decimal.RequireFromString("0.000004"))
			}(sid)
		}
	}
	wg.Wait()

	for s := 0; s < 4; s++ {
		sid := string(rune('a' + s))
		want := decimal.RequireFromString("0.0001")
		if got := r.TotalUSD(sid); !got.Equal(want) {
			t.Errorf("session %s total = %s, want %s", sid, got, want)
		}
	}
}
