package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every provider in a [FallbackGroup] failed or
// sits behind an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-provider circuit breaker a
// [FallbackGroup] creates for each registered entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// providerEntry pairs one provider with its dedicated breaker.
type providerEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup chains a primary provider with zero or more fallbacks of the
// same type. Calls go to the first entry whose breaker lets them through and
// whose call succeeds, in registration order. The typed wrappers (ASRFallback,
// LLMFallback, TTSFallback) build their chains on this.
//
// Register every fallback before the first call; afterwards the group is safe
// for concurrent use.
type FallbackGroup[T any] struct {
	entries []providerEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a fallback provider, tried after every earlier entry.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, providerEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// noteMiss logs why an entry did not serve the call.
func noteMiss(name string, err error) {
	if errors.Is(err, ErrCircuitOpen) {
		slog.Debug("provider skipped, circuit open", "provider", name)
		return
	}
	slog.Warn("provider failed, trying next in chain", "provider", name, "error", err)
}

// Execute runs fn against each entry in order until one succeeds. Entries
// with open breakers are skipped. When every entry misses, the last error is
// wrapped in [ErrAllFailed].
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		noteMiss(entry.name, err)
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value. It is a package-level function because Go methods cannot introduce
// type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		noteMiss(entry.name, err)
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
