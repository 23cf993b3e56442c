package policy

import (
	"testing"

	"github.com/vaani-ai/vaani/pkg/types"
)

func TestFor_KnownTiers(t *testing.T) {
	for _, tier := range types.Tiers() {
		p := For(tier)
		if p.Tier != tier {
			t.Errorf("For(%s).Tier = %s", tier, p.Tier)
		}
	}
}

func TestFor_UnknownTierFallsBackToBalanced(t *testing.T) {
	p := For(types.OptimizationTier("turbo"))
	if p.Tier != types.TierBalanced {
		t.Fatalf("fallback tier = %s, want balanced", p.Tier)
	}
}

// TestMonotonicity checks the quality→speed ordering of every knob that the
// tiers promise to keep monotone.
func TestMonotonicity(t *testing.T) {
	tiers := types.Tiers()
	prev := For(tiers[0])
	for _, tier := range tiers[1:] {
		cur := For(tier)
		if cur.LLMTemperature < prev.LLMTemperature {
			t.Errorf("%s: temperature %v decreased below %s's %v",
				tier, cur.LLMTemperature, prev.Tier, prev.LLMTemperature)
		}
		if cur.LLMMaxTokens > prev.LLMMaxTokens {
			t.Errorf("%s: max tokens %d increased above %s's %d",
				tier, cur.LLMMaxTokens, prev.Tier, prev.LLMMaxTokens)
		}
		if cur.RAGDepth > prev.RAGDepth {
			t.Errorf("%s: rag depth %d increased above %s's %d",
				tier, cur.RAGDepth, prev.Tier, prev.RAGDepth)
		}
		if cur.CacheTTL > prev.CacheTTL {
			t.Errorf("%s: cache ttl %v increased above %s's %v",
				tier, cur.CacheTTL, prev.Tier, prev.CacheTTL)
		}
		// Streaming aggressiveness: confidence thresholds and prefix word
		// minimums only ever relax towards speed.
		if cur.ASRConfidenceThreshold > prev.ASRConfidenceThreshold {
			t.Errorf("%s: asr confidence %v increased above %s's %v",
				tier, cur.ASRConfidenceThreshold, prev.Tier, prev.ASRConfidenceThreshold)
		}
		if cur.MinPrefixWords > prev.MinPrefixWords {
			t.Errorf("%s: min prefix words %d increased above %s's %d",
				tier, cur.MinPrefixWords, prev.Tier, prev.MinPrefixWords)
		}
		if cur.TurnDeadline > prev.TurnDeadline {
			t.Errorf("%s: turn deadline %v increased above %s's %v",
				tier, cur.TurnDeadline, prev.Tier, prev.TurnDeadline)
		}
		prev = cur
	}
}

func TestRepresentativeNumerics(t *testing.T) {
	q := For(types.TierQuality)
	if q.LLMTemperature != 0.3 || q.LLMMaxTokens != 600 || q.RAGDepth != 10 || !q.SemanticCacheEnabled {
		t.Errorf("quality profile = %+v", q)
	}
	s := For(types.TierSpeed)
	if s.RAGDepth != 0 || s.SemanticCacheEnabled || s.ResponseWordCap != 50 {
		t.Errorf("speed profile = %+v", s)
	}
}
