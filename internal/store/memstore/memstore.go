// Package memstore is the in-memory store.Store implementation. It backs
// unit tests and store-less deployments where persistence is not configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/pkg/types"
)

// Store holds every repository in process memory. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	sessions   map[string]types.Session
	turns      map[string][]types.Turn // keyed by session ID
	messages   map[string][]types.StoredMessage
	violations []types.GuardrailViolation
	costs      map[string][]types.CostEntry
	metrics    map[string]types.SessionMetrics
	feedback   map[string][]types.Feedback
	prompts    map[string]types.SystemPrompt
	configs    map[string]types.SessionConfiguration

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option is a functional option for the Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store seeded with the built-in system prompts.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: map[string]types.Session{},
		turns:    map[string][]types.Turn{},
		messages: map[string][]types.StoredMessage{},
		costs:    map[string][]types.CostEntry{},
		metrics:  map[string]types.SessionMetrics{},
		feedback: map[string][]types.Feedback{},
		prompts:  map[string]types.SystemPrompt{},
		configs:  map[string]types.SessionConfiguration{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	for _, p := range builtinPrompts() {
		s.prompts[p.ID] = p
	}
	return s
}

// builtinPrompts are the prompt templates shipped with the server. They are
// listed and usable but refuse deletion.
func builtinPrompts() []types.SystemPrompt {
	return []types.SystemPrompt{
		{
			ID:      "builtin-assistant",
			Name:    "General assistant",
			Text:    "You are a helpful voice assistant. Answer briefly and conversationally; your replies will be spoken aloud.",
			BuiltIn: true,
		},
		{
			ID:      "builtin-support",
			Name:    "Customer support",
			Text:    "You are a patient customer-support agent. Resolve the caller's issue step by step and confirm before closing.",
			BuiltIn: true,
		},
	}
}

// Sessions implements store.Store.
func (s *Store) Sessions() store.SessionRepository { return (*sessionRepo)(s) }

// Turns implements store.Store.
func (s *Store) Turns() store.TurnRepository { return (*turnRepo)(s) }

// Messages implements store.Store.
func (s *Store) Messages() store.MessageRepository { return (*messageRepo)(s) }

// Violations implements store.Store.
func (s *Store) Violations() store.ViolationRepository { return (*violationRepo)(s) }

// Costs implements store.Store.
func (s *Store) Costs() store.CostRepository { return (*costRepo)(s) }

// Metrics implements store.Store.
func (s *Store) Metrics() store.MetricsRepository { return (*metricsRepo)(s) }

// Feedback implements store.Store.
func (s *Store) Feedback() store.FeedbackRepository { return (*feedbackRepo)(s) }

// Prompts implements store.Store.
func (s *Store) Prompts() store.PromptRepository { return (*promptRepo)(s) }

// Configs implements store.Store.
func (s *Store) Configs() store.ConfigRepository { return (*configRepo)(s) }

// ─── sessions ───

type sessionRepo Store

func (r *sessionRepo) Create(_ context.Context, sess types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = r.now()
	}
	r.sessions[sess.ID] = sess
	return nil
}

func (r *sessionRepo) Get(_ context.Context, id string) (*types.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (r *sessionRepo) SetLastTurn(_ context.Context, sessionID, turnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.LastTurnID = turnID
	r.sessions[sessionID] = sess
	return nil
}

// ─── turns ───

type turnRepo Store

func (r *turnRepo) Create(_ context.Context, t types.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[t.SessionID] = append(r.turns[t.SessionID], t)
	return nil
}

func (r *turnRepo) Finish(_ context.Context, t types.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.turns[t.SessionID]
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *turnRepo) Get(_ context.Context, sessionID, turnID string) (*types.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.turns[sessionID] {
		if t.ID == turnID {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *turnRepo) List(_ context.Context, sessionID string) ([]types.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Turn(nil), r.turns[sessionID]...), nil
}

// ─── messages ───

type messageRepo Store

func (r *messageRepo) Append(_ context.Context, m types.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	r.messages[m.SessionID] = append(r.messages[m.SessionID], m)
	return nil
}

func (r *messageRepo) List(_ context.Context, sessionID string) ([]types.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.StoredMessage(nil), r.messages[sessionID]...), nil
}

// ─── violations ───

type violationRepo Store

func (r *violationRepo) Append(_ context.Context, v types.GuardrailViolation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = r.now()
	}
	r.violations = append(r.violations, v)
	return nil
}

// ─── costs ───

type costRepo Store

func (r *costRepo) AppendCostEntry(_ context.Context, e types.CostEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.costs[e.SessionID] = append(r.costs[e.SessionID], e)
	return nil
}

func (r *costRepo) List(_ context.Context, sessionID string) ([]types.CostEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.CostEntry(nil), r.costs[sessionID]...), nil
}

// ─── metrics ───

type metricsRepo Store

func (r *metricsRepo) Apply(_ context.Context, sessionID string, roll store.TurnRollup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics[sessionID]
	m.SessionID = sessionID
	store.ApplyRollup(&m, roll)
	m.UpdatedAt = r.now()
	r.metrics[sessionID] = m
	return nil
}

func (r *metricsRepo) Get(_ context.Context, sessionID string) (*types.SessionMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

// ─── feedback ───

type feedbackRepo Store

func (r *feedbackRepo) Add(_ context.Context, f types.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now()
	}
	r.feedback[f.SessionID] = append(r.feedback[f.SessionID], f)
	return nil
}

func (r *feedbackRepo) List(_ context.Context, sessionID string) ([]types.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Feedback(nil), r.feedback[sessionID]...), nil
}

// ─── prompts ───

type promptRepo Store

func (r *promptRepo) Create(_ context.Context, p types.SystemPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.prompts[p.ID] = p
	return nil
}

func (r *promptRepo) Get(_ context.Context, id string) (*types.SystemPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *promptRepo) List(_ context.Context) ([]types.SystemPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SystemPrompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *promptRepo) Update(_ context.Context, p types.SystemPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.prompts[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.BuiltIn = existing.BuiltIn
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.now()
	r.prompts[p.ID] = p
	return nil
}

func (r *promptRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.BuiltIn {
		return store.ErrBuiltIn
	}
	delete(r.prompts, id)
	return nil
}

// ─── configurations ───

type configRepo Store

func (r *configRepo) Save(_ context.Context, c types.SessionConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if existing, ok := r.configs[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	// One default per owner: setting a new default clears the old one.
	if c.Default {
		for id, other := range r.configs {
			if other.Owner == c.Owner && other.Default && id != c.ID {
				other.Default = false
				r.configs[id] = other
			}
		}
	}
	r.configs[c.ID] = c
	return nil
}

func (r *configRepo) Get(_ context.Context, id string) (*types.SessionConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *configRepo) List(_ context.Context, owner string) ([]types.SessionConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.SessionConfiguration
	for _, c := range r.configs {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *configRepo) GetDefault(_ context.Context, owner string) (*types.SessionConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.configs {
		if c.Owner == owner && c.Default {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *configRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.configs, id)
	return nil
}
