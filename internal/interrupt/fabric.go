// Package interrupt provides the per-turn cancellation fabric.
//
// Every conversational turn runs under a Token issued by the Fabric. A token
// can be cancelled exactly once, from anywhere that knows the session and
// turn IDs: the session loop on barge-in, a deadline watchdog, or the
// orchestrator itself on unrecoverable errors. Cancellation is edge-triggered
// and idempotent; registered cleanup functions run exactly once.
package interrupt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vaani-ai/vaani/pkg/types"
)

// ErrInterrupted is the sentinel wrapped by Token.Err after cancellation.
// Callers use errors.Is to distinguish an interrupted turn from a failed one.
var ErrInterrupted = errors.New("turn interrupted")

// maxCleanups bounds the number of cleanup functions one token accepts.
const maxCleanups = 64

// Token represents one turn's cancellation scope.
type Token struct {
	sessionID string
	turnID    string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	finished  bool
	reason    types.InterruptReason
	cleanups  []func()
}

// SessionID returns the owning session's ID.
func (t *Token) SessionID() string { return t.sessionID }

// TurnID returns the turn's ID.
func (t *Token) TurnID() string { return t.turnID }

// Context returns the context that is cancelled when the turn is interrupted.
// Provider calls made on behalf of the turn must use it.
func (t *Token) Context() context.Context { return t.ctx }

// Done returns a channel closed on interruption.
func (t *Token) Done() <-chan struct{} { return t.ctx.Done() }

// Cancelled reports whether the token has been interrupted.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Reason returns the interrupt reason, or the empty string while the token
// is still live.
func (t *Token) Reason() types.InterruptReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns nil while the token is live and an error wrapping
// ErrInterrupted after cancellation.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInterrupted, t.reason)
}

// OnCleanup registers fn to run when the turn ends, on cancellation or on
// normal completion, whichever comes first. Each registered function runs
// exactly once; functions registered after the turn has ended run immediately
// on the caller's goroutine. Registrations beyond the bound are dropped.
func (t *Token) OnCleanup(fn func()) {
	t.mu.Lock()
	if t.cancelled || t.finished {
		t.mu.Unlock()
		fn()
		return
	}
	if len(t.cleanups) < maxCleanups {
		t.cleanups = append(t.cleanups, fn)
	}
	t.mu.Unlock()
}

// interrupt performs the one-shot cancellation. Returns false if the token
// was already cancelled.
func (t *Token) interrupt(reason types.InterruptReason) bool {
	t.mu.Lock()
	if t.cancelled || t.finished {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.reason = reason
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	t.cancel()
	// Reverse order, like deferred statements.
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	return true
}

// finish releases the context and drains the cleanup stack without marking
// the token interrupted. No-op on a token that already ended.
func (t *Token) finish() {
	t.mu.Lock()
	if t.cancelled || t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	t.cancel()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Fabric tracks the active turn of every session and routes interrupts.
// At most one turn per session is active at a time.
type Fabric struct {
	mu     sync.Mutex
	active map[string]*Token
	logger *slog.Logger
}

// Option is a functional option for the Fabric.
type Option func(*Fabric)

// WithLogger sets the logger used for interrupt events.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fabric) { f.logger = l }
}

// New creates an empty Fabric.
func New(opts ...Option) *Fabric {
	f := &Fabric{
		active: map[string]*Token{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// StartTurn issues a token for a new turn. If the session already has an
// active turn, that older turn is cancelled with reason "replaced" before
// the new token is installed. The token's context descends from ctx.
func (f *Fabric) StartTurn(ctx context.Context, sessionID, turnID string) *Token {
	turnCtx, cancel := context.WithCancel(ctx)
	tok := &Token{
		sessionID: sessionID,
		turnID:    turnID,
		ctx:       turnCtx,
		cancel:    cancel,
	}

	f.mu.Lock()
	prev := f.active[sessionID]
	f.active[sessionID] = tok
	f.mu.Unlock()

	if prev != nil && prev.interrupt(types.InterruptReplaced) {
		f.logger.Debug("turn replaced",
			"session_id", sessionID, "old_turn_id", prev.turnID, "new_turn_id", turnID)
	}
	return tok
}

// Cancel interrupts the named turn if it is still the session's active turn.
// Returns true only on the first effective cancellation; repeated or stale
// cancels return false.
func (f *Fabric) Cancel(sessionID, turnID string, reason types.InterruptReason) bool {
	f.mu.Lock()
	tok := f.active[sessionID]
	f.mu.Unlock()

	if tok == nil || tok.turnID != turnID {
		return false
	}
	if !tok.interrupt(reason) {
		return false
	}
	f.logger.Info("turn interrupted",
		"session_id", sessionID, "turn_id", turnID, "reason", string(reason))
	return true
}

// CancelActive interrupts whatever turn is active for the session, if any.
func (f *Fabric) CancelActive(sessionID string, reason types.InterruptReason) bool {
	f.mu.Lock()
	tok := f.active[sessionID]
	f.mu.Unlock()

	if tok == nil {
		return false
	}
	return f.Cancel(sessionID, tok.turnID, reason)
}

// FinishTurn retires a completed token: its context is released and the
// registered cleanups run exactly once, in reverse registration order, the
// same as on cancellation. Finishing a token that was already replaced
// leaves the newer token in place.
func (f *Fabric) FinishTurn(tok *Token) {
	f.mu.Lock()
	if f.active[tok.sessionID] == tok {
		delete(f.active, tok.sessionID)
	}
	f.mu.Unlock()
	tok.finish()
}

// Active returns the session's active token, or nil.
func (f *Fabric) Active(sessionID string) *Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[sessionID]
}
