// Package resilience keeps the pipeline answering while upstream speech and
// language providers misbehave. A [CircuitBreaker] stops hammering a provider
// that keeps failing; the typed fallback groups (ASR, LLM, TTS) route each
// call to the first healthy provider in a configured chain.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a [CircuitBreaker] operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after too
	// many consecutive failures, left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to test
	// whether the provider has recovered.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the breaker's tuning knobs.
type CircuitBreakerConfig struct {
	// Name labels the guarded provider in log messages.
	Name string

	// MaxFailures is how many consecutive failures the closed state tolerates
	// before opening. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing the
	// provider again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget of the half-open state. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards one provider with the classic closed, open, half-open
// cycle.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failures      int
	lastFailureAt time.Time
	probes        int
	probeFailures int
}

// NewCircuitBreaker creates a breaker from cfg, substituting defaults for
// zero-valued fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it, folding fn's outcome back into
// the breaker's state. While open it returns [ErrCircuitOpen] without calling
// fn; while half-open only the probe budget gets through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFailures = 0
		slog.Info("probing provider after circuit reset timeout", "provider", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure(probing)
	} else {
		cb.onSuccess(probing)
	}
	return err
}

// onFailure updates failure accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(probing bool) {
	cb.lastFailureAt = time.Now()

	if probing {
		// One failed probe is enough to reopen.
		cb.probeFailures++
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("provider failed its probe, circuit reopened", "provider", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("provider circuit opened",
			"provider", cb.name, "consecutive_failures", cb.failures)
	}
}

// onSuccess updates success accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(probing bool) {
	if !probing {
		cb.failures = 0
		return
	}
	if cb.probes-cb.probeFailures >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.failures = 0
		cb.probes = 0
		cb.probeFailures = 0
		slog.Info("provider circuit closed after successful probes", "provider", cb.name)
	}
}

// State returns the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the stored transition happens
// on the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears every counter.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFailures = 0
	slog.Info("provider circuit manually reset", "provider", cb.name)
}
