package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vaani-ai/vaani/pkg/types"
)

// semanticScanLimit bounds how many recent entries a semantic lookup
// inspects.
const semanticScanLimit = 100

// LLMHitKind distinguishes how a cached response was found.
type LLMHitKind string

const (
	HitExact    LLMHitKind = "exact"
	HitSemantic LLMHitKind = "semantic"
)

// LLMHit is a successful cache lookup.
type LLMHit struct {
	Response string
	Kind     LLMHitKind

	// Score is the similarity that produced a semantic hit; 1 for exact hits.
	Score float64
}

type llmEntry struct {
	key        string
	normalized string
	tier       types.OptimizationTier
	response   string
	createdAt  time.Time
	expiresAt  time.Time
}

// LLMCache holds generated responses keyed by normalized input text and
// tier. Exact lookups are O(1); semantic lookups scan the newest entries of
// the same tier, bounded by semanticScanLimit. Expired entries are evicted
// lazily as lookups touch them.
type LLMCache struct {
	mu      sync.Mutex
	entries map[string]*llmEntry

	// order holds keys oldest-first; appends on insert, compaction on lazy
	// eviction.
	order []string

	now   func() time.Time
	group singleflight.Group
}

// LLMOption is a functional option for the LLMCache.
type LLMOption func(*LLMCache)

// WithLLMClock overrides the time source, for tests.
func WithLLMClock(now func() time.Time) LLMOption {
	return func(c *LLMCache) { c.now = now }
}

// NewLLMCache creates an empty LLMCache.
func NewLLMCache(opts ...LLMOption) *LLMCache {
	c := &LLMCache{
		entries: map[string]*llmEntry{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetExact looks up a response by exact normalized-text match.
func (c *LLMCache) GetExact(text string, tier types.OptimizationTier) (*LLMHit, bool) {
	key := LLMKey(text, tier)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return &LLMHit{Response: e.response, Kind: HitExact, Score: 1}, true
}

// GetSemantic scans the newest entries of the same tier and returns the best
// match whose Jaccard word-set similarity is at least threshold. A score of
// exactly threshold is a hit. Ties on score resolve to the most recent
// entry.
func (c *LLMCache) GetSemantic(text string, tier types.OptimizationTier, threshold float64) (*LLMHit, bool) {
	normalized := Normalize(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var best *llmEntry
	bestScore := 0.0
	scanned := 0

	// Walk newest-first so the first entry at any given score wins the tie.
	for i := len(c.order) - 1; i >= 0 && scanned < semanticScanLimit; i-- {
		e, ok := c.entries[c.order[i]]
		if !ok {
			continue
		}
		if now.After(e.expiresAt) {
			delete(c.entries, e.key)
			continue
		}
		if e.tier != tier {
			continue
		}
		scanned++

		score := jaccard(normalized, e.normalized)
		if score > bestScore && score >= threshold {
			best = e
			bestScore = score
		}
	}

	if best == nil {
		return nil, false
	}
	return &LLMHit{Response: best.response, Kind: HitSemantic, Score: bestScore}, true
}

// Put stores a generated response. Callers must only store guardrail-safe,
// freshly generated responses; cache hits are never re-stored.
func (c *LLMCache) Put(text string, tier types.OptimizationTier, response string, ttl time.Duration) {
	key := LLMKey(text, tier)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &llmEntry{
		key:        key,
		normalized: Normalize(text),
		tier:       tier,
		response:   response,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
	}
	c.compact()
}

// compact drops order slots whose entries were evicted. Must be called with
// c.mu held.
func (c *LLMCache) compact() {
	if len(c.order) < 2*len(c.entries)+16 {
		return
	}
	kept := c.order[:0]
	for _, k := range c.order {
		if _, ok := c.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	c.order = kept
}

// Generate deduplicates concurrent generations for the same key: while one
// call runs fn, other callers with the same key block and share its result.
func (c *LLMCache) Generate(key string, fn func() (string, error)) (string, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of live entries, evicting expired ones.
func (c *LLMCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
