// Package policy maps an optimization tier to the concrete knob bundle the
// rest of the pipeline consumes. It is the single authority for these
// constants: no other package hard-codes a temperature, token cap, RAG depth,
// cache TTL, or timeout.
//
// The mapping is a pure function over a static table. Moving from quality
// towards speed, temperature never decreases, token caps and RAG depth never
// increase, cache TTLs never increase, and streaming aggressiveness (lower
// speculation thresholds, fewer prefix words) never decreases.
package policy

import (
	"time"

	"github.com/vaani-ai/vaani/pkg/types"
)

// Profile is the full knob bundle for one optimization tier.
type Profile struct {
	Tier types.OptimizationTier

	// LLM generation knobs.
	LLMTemperature float64
	LLMMaxTokens   int

	// RAGDepth is the number of document chunks retrieved. Zero disables RAG.
	RAGDepth int

	// Semantic cache.
	SemanticCacheEnabled bool
	SemanticThreshold    float64

	// CacheTTL applies to both the LLM response cache and the TTS audio cache.
	CacheTTL time.Duration

	// ASRConfidenceThreshold gates speculation on partial transcripts.
	ASRConfidenceThreshold float64

	// MinPrefixWords is the minimum stable prefix length before speculating.
	MinPrefixWords int

	// ResponseWordCap truncates responses; zero means uncapped.
	ResponseWordCap int

	StreamingEnabled bool
	Parallel         bool

	// Per-attempt provider timeouts.
	ASRTimeout       time.Duration
	LLMTimeout       time.Duration
	TranslateTimeout time.Duration
	TTSTimeout       time.Duration

	// TurnDeadline bounds the whole turn; exceeding it cancels with reason
	// timeout.
	TurnDeadline time.Duration
}

var profiles = map[types.OptimizationTier]Profile{
	types.TierQuality: {
		Tier:                   types.TierQuality,
		LLMTemperature:         0.3,
		LLMMaxTokens:           600,
		RAGDepth:               10,
		SemanticCacheEnabled:   true,
		SemanticThreshold:      0.7,
		CacheTTL:               3600 * time.Second,
		ASRConfidenceThreshold: 0.9,
		MinPrefixWords:         6,
		ResponseWordCap:        0,
		StreamingEnabled:       false,
		Parallel:               false,
		ASRTimeout:             15 * time.Second,
		LLMTimeout:             30 * time.Second,
		TranslateTimeout:       10 * time.Second,
		TTSTimeout:             20 * time.Second,
		TurnDeadline:           90 * time.Second,
	},
	types.TierBalancedQuality: {
		Tier:                   types.TierBalancedQuality,
		LLMTemperature:         0.5,
		LLMMaxTokens:           500,
		RAGDepth:               5,
		SemanticCacheEnabled:   true,
		SemanticThreshold:      0.7,
		CacheTTL:               2700 * time.Second,
		ASRConfidenceThreshold: 0.85,
		MinPrefixWords:         5,
		ResponseWordCap:        0,
		StreamingEnabled:       false,
		Parallel:               true,
		ASRTimeout:             12 * time.Second,
		LLMTimeout:             25 * time.Second,
		TranslateTimeout:       8 * time.Second,
		TTSTimeout:             15 * time.Second,
		TurnDeadline:           60 * time.Second,
	},
	types.TierBalanced: {
		Tier:                   types.TierBalanced,
		LLMTemperature:         0.7,
		LLMMaxTokens:           400,
		RAGDepth:               3,
		SemanticCacheEnabled:   false,
		SemanticThreshold:      0.7,
		CacheTTL:               1800 * time.Second,
		ASRConfidenceThreshold: 0.8,
		MinPrefixWords:         4,
		ResponseWordCap:        100,
		StreamingEnabled:       true,
		Parallel:               true,
		ASRTimeout:             10 * time.Second,
		LLMTimeout:             20 * time.Second,
		TranslateTimeout:       6 * time.Second,
		TTSTimeout:             12 * time.Second,
		TurnDeadline:           45 * time.Second,
	},
	types.TierBalancedSpeed: {
		Tier:                   types.TierBalancedSpeed,
		LLMTemperature:         0.8,
		LLMMaxTokens:           300,
		RAGDepth:               1,
		SemanticCacheEnabled:   false,
		SemanticThreshold:      0.7,
		CacheTTL:               1200 * time.Second,
		ASRConfidenceThreshold: 0.7,
		MinPrefixWords:         3,
		ResponseWordCap:        75,
		StreamingEnabled:       true,
		Parallel:               true,
		ASRTimeout:             8 * time.Second,
		LLMTimeout:             15 * time.Second,
		TranslateTimeout:       5 * time.Second,
		TTSTimeout:             10 * time.Second,
		TurnDeadline:           30 * time.Second,
	},
	types.TierSpeed: {
		Tier:                   types.TierSpeed,
		LLMTemperature:         0.9,
		LLMMaxTokens:           200,
		RAGDepth:               0,
		SemanticCacheEnabled:   false,
		SemanticThreshold:      0.7,
		CacheTTL:               600 * time.Second,
		ASRConfidenceThreshold: 0.6,
		MinPrefixWords:         2,
		ResponseWordCap:        50,
		StreamingEnabled:       true,
		Parallel:               true,
		ASRTimeout:             6 * time.Second,
		LLMTimeout:             10 * time.Second,
		TranslateTimeout:       4 * time.Second,
		TTSTimeout:             8 * time.Second,
		TurnDeadline:           20 * time.Second,
	},
}

// For returns the profile for tier. Unrecognised tiers fall back to balanced,
// which is also the default when a client omits the tier.
func For(tier types.OptimizationTier) Profile {
	if p, ok := profiles[tier]; ok {
		return p
	}
	return profiles[types.TierBalanced]
}
