package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Audio is one cached synthesis result.
type Audio struct {
	Data       []byte
	Codec      string
	SampleRate int
}

type ttsEntry struct {
	audio     Audio
	expiresAt time.Time
}

// TTSCache holds synthesized audio keyed by TTSKey. Identical text spoken by
// the same voice with the same tuning is synthesized once per TTL.
type TTSCache struct {
	mu      sync.Mutex
	entries map[string]*ttsEntry
	now     func() time.Time
	group   singleflight.Group
}

// TTSOption is a functional option for the TTSCache.
type TTSOption func(*TTSCache)

// WithTTSClock overrides the time source, for tests.
func WithTTSClock(now func() time.Time) TTSOption {
	return func(c *TTSCache) { c.now = now }
}

// NewTTSCache creates an empty TTSCache.
func NewTTSCache(opts ...TTSOption) *TTSCache {
	c := &TTSCache{
		entries: map[string]*ttsEntry{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get looks up cached audio by key.
func (c *TTSCache) Get(key string) (*Audio, bool) {
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
	audio := e.audio
	return &audio, true
}

// Put stores synthesized audio under key for ttl.
func (c *TTSCache) Put(key string, audio Audio, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &ttsEntry{audio: audio, expiresAt: c.now().Add(ttl)}
}

// Synthesize deduplicates concurrent synthesis for the same key.
func (c *TTSCache) Synthesize(key string, fn func() (*Audio, error)) (*Audio, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Audio), nil
}
