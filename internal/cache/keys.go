// Package cache implements the response caches that sit in front of the LLM
// and TTS providers: an exact-match LLM cache keyed on normalized text, an
// optional semantic LLM cache using word-set similarity, and a synthesized
// audio cache. Lookups and writes never fail a request; a broken backing
// store degrades to a pass-through.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vaani-ai/vaani/pkg/types"
)

// Normalize canonicalizes user text for exact-match keying: lowercase,
// whitespace collapsed, trimmed. Two utterances differing only in casing or
// spacing share a cache entry.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// LLMKey derives the exact-match cache key. The tier is part of the key:
// tiers generate with different temperatures and token budgets, so their
// responses are not interchangeable.
func LLMKey(text string, tier types.OptimizationTier) string {
	sum := sha256.Sum256([]byte(Normalize(text) + "\x00" + string(tier)))
	return hex.EncodeToString(sum[:])
}

// TTSKey derives the audio cache key from everything that shapes the
// waveform.
func TTSKey(text, voiceID, provider, codec string, sampleRate int, tuning types.TTSTuning) string {
	payload := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d\x00%.4f\x00%.4f\x00%.4f",
		text, voiceID, provider, codec, sampleRate, tuning.Pitch, tuning.Pace, tuning.Loudness)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// jaccard computes the Jaccard similarity of the lowercased word sets of two
// normalized texts. Returns 0 for two empty texts.
func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(normalized string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(normalized) {
		set[w] = true
	}
	return set
}
