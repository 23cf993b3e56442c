package app

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/vaani-ai/vaani/internal/interrupt"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/internal/turn"
	"github.com/vaani-ai/vaani/pkg/types"
)

// Runner executes one turn. *turn.Orchestrator is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, req turn.Request) (*turn.Result, error)
}

const (
	shardCount         = 16
	defaultIdleTimeout = 5 * time.Minute
	janitorInterval    = 30 * time.Second
)

// session is the live state of one connected conversation. Turns are
// serialized on mu; settings are only mutated by the owning connection's
// read loop.
type session struct {
	id string

	mu sync.Mutex

	tier           types.OptimizationTier
	targetLanguage string
	system         string
	ttsProvider    string
	voiceID        string
	tuning         types.TTSTuning

	sender sender

	lastMu     sync.Mutex
	lastActive time.Time
}

func (s *session) touch(now time.Time) {
	s.lastMu.Lock()
	s.lastActive = now
	s.lastMu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return now.Sub(s.lastActive)
}

// sender delivers one server message to the session's client.
type sender interface {
	send(msg ServerMessage)
	close(reason string)
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// ManagerConfig wires the Manager's collaborators.
type ManagerConfig struct {
	Runner Runner
	Store  store.Store
	Fabric *interrupt.Fabric

	// DefaultTier applies when the client never names one.
	DefaultTier types.OptimizationTier

	// IdleTimeout destroys sessions with no client activity.
	IdleTimeout time.Duration

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Manager owns the session map and translates client events into turns. The
// map is partitioned by session-id hash so unrelated sessions never contend
// on one lock.
type Manager struct {
	shards [shardCount]*shard
	cfg    ManagerConfig
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Fabric == nil {
		cfg.Fabric = interrupt.New()
	}
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = types.TierBalanced
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Manager{cfg: cfg}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: map[string]*session{}}
	}
	return m
}

func (m *Manager) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return m.shards[h.Sum32()%shardCount]
}

func (m *Manager) lookup(sessionID string) *session {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.sessions[sessionID]
}

func (m *Manager) remove(sessionID string) *session {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s := sh.sessions[sessionID]
	delete(sh.sessions, sessionID)
	return s
}

// Janitor destroys idle sessions until ctx is cancelled. Run it in its own
// goroutine.
func (m *Manager) Janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.reapIdle(now)
		}
	}
}

func (m *Manager) reapIdle(now time.Time) {
	for _, sh := range m.shards {
		sh.mu.Lock()
		var idle []*session
		for id, s := range sh.sessions {
			if s.idleSince(now) > m.cfg.IdleTimeout {
				idle = append(idle, s)
				delete(sh.sessions, id)
			}
		}
		sh.mu.Unlock()

		for _, s := range idle {
			m.cfg.Fabric.CancelActive(s.id, types.InterruptManual)
			m.cfg.Logger.Info("session expired", "session_id", s.id,
				"idle", m.cfg.IdleTimeout.String())
			s.sender.send(ServerMessage{Kind: KindSessionStopped, SessionID: s.id})
			s.sender.close("idle timeout")
			m.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// event handling
// ─────────────────────────────────────────────────────────────────────────────

// Handle dispatches one parsed client event. It returns promptly; turn work
// runs on its own goroutine so the read loop keeps servicing interrupts.
func (m *Manager) Handle(ctx context.Context, snd sender, msg *ClientMessage) {
	switch msg.Kind {
	case KindStart:
		m.handleStart(ctx, snd, msg)
	case KindAudio:
		m.handleUtterance(ctx, snd, msg, true)
	case KindText:
		m.handleUtterance(ctx, snd, msg, false)
	case KindInterrupt:
		m.handleInterrupt(snd, msg)
	case KindStop:
		m.Stop(ctx, msg.SessionID)
	default:
		snd.send(errorMessage(CodeInvalidMessage, "unknown message kind"))
	}
}

func (m *Manager) handleStart(ctx context.Context, snd sender, msg *ClientMessage) {
	s := &session{
		id:         msg.SessionID,
		tier:       parseTier(msg.OptimizationLevel, m.cfg.DefaultTier),
		sender:     snd,
		lastActive: time.Now(),
	}
	s.targetLanguage = msg.TargetLanguage

	configured := false
	if msg.ConfigID != "" && m.cfg.Store != nil {
		cfg, err := m.cfg.Store.Configs().Get(ctx, msg.ConfigID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			snd.send(errorMessage(CodeInvalidMessage, "unknown configuration "+msg.ConfigID))
		case err != nil:
			m.cfg.Logger.Warn("configuration load failed",
				"session_id", msg.SessionID, "config_id", msg.ConfigID, "error", err)
		default:
			m.applyConfig(ctx, s, cfg)
			configured = true
		}
	}
	// Explicit start fields win over the named configuration.
	if msg.OptimizationLevel != "" {
		s.tier = parseTier(msg.OptimizationLevel, s.tier)
	}
	if msg.TargetLanguage != "" {
		s.targetLanguage = msg.TargetLanguage
	}

	sh := m.shardFor(msg.SessionID)
	sh.mu.Lock()
	_, existed := sh.sessions[msg.SessionID]
	sh.sessions[msg.SessionID] = s
	sh.mu.Unlock()

	if !existed {
		m.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	}
	m.persistSession(ctx, s)

	snd.send(ServerMessage{Kind: KindSessionStarted, SessionID: s.id})
	if configured || msg.OptimizationLevel != "" || msg.TargetLanguage != "" {
		snd.send(ServerMessage{
			Kind:              KindConfigLoaded,
			SessionID:         s.id,
			OptimizationLevel: string(s.tier),
			TargetLanguage:    s.targetLanguage,
		})
	}
}

func (m *Manager) applyConfig(ctx context.Context, s *session, cfg *types.SessionConfiguration) {
	if cfg.OptimizationTier.IsValid() {
		s.tier = cfg.OptimizationTier
	}
	if cfg.TargetLanguage != "" {
		s.targetLanguage = cfg.TargetLanguage
	}
	s.ttsProvider = cfg.TTSProvider
	s.voiceID = cfg.TTSVoiceID
	s.tuning = cfg.TTSTuning

	switch {
	case cfg.SystemPromptText != "":
		s.system = cfg.SystemPromptText
	case cfg.SystemPromptID != "" && m.cfg.Store != nil:
		p, err := m.cfg.Store.Prompts().Get(ctx, cfg.SystemPromptID)
		if err != nil {
			m.cfg.Logger.Warn("system prompt load failed",
				"session_id", s.id, "prompt_id", cfg.SystemPromptID, "error", err)
			return
		}
		s.system = p.Text
	}
}

func (m *Manager) persistSession(ctx context.Context, s *session) {
	if m.cfg.Store == nil {
		return
	}
	err := m.cfg.Store.Sessions().Create(ctx, types.Session{
		ID:               s.id,
		OptimizationTier: s.tier,
		TargetLanguage:   s.targetLanguage,
	})
	if err != nil {
		m.cfg.Logger.Warn("session persistence failed", "session_id", s.id, "error", err)
	}
}

// handleUtterance runs one turn for an audio or text event. A still-active
// prior turn is cancelled first: barge-in for speech, replaced for text.
func (m *Manager) handleUtterance(ctx context.Context, snd sender, msg *ClientMessage, speech bool) {
	s := m.lookup(msg.SessionID)
	if s == nil {
		snd.send(errorMessage(CodeSessionNotFound, "session not started"))
		return
	}
	s.touch(time.Now())

	req := turn.Request{
		SessionID:      s.id,
		Tier:           parseTier(msg.OptimizationLevel, s.tier),
		TargetLanguage: s.targetLanguage,
		System:         s.system,
		TTSProvider:    s.ttsProvider,
		VoiceID:        s.voiceID,
		Tuning:         s.tuning,
	}
	if msg.TargetLanguage != "" {
		req.TargetLanguage = msg.TargetLanguage
	}

	if speech {
		audio, err := DecodeAudio(msg.Audio)
		if err != nil {
			snd.send(errorMessage(CodeBadAudio, "audio chunk dropped: invalid base64"))
			return
		}
		req.Audio = audio
		req.Format = "wav"
	} else {
		req.Text = msg.Text
	}

	reason := types.InterruptReplaced
	if speech {
		reason = types.InterruptUserBargeIn
	}
	m.cfg.Fabric.CancelActive(s.id, reason)

	go m.runTurn(ctx, s, snd, req)
}

func (m *Manager) runTurn(ctx context.Context, s *session, snd sender, req turn.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := m.cfg.Runner.Run(ctx, req)
	if err != nil {
		snd.send(errorMessage(CodeTurnFailed, "turn could not be completed"))
		return
	}

	switch res.Status {
	case types.TurnInterrupted:
		snd.send(ServerMessage{
			Kind:      KindInterrupted,
			SessionID: s.id,
			TurnID:    res.TurnID,
			Reason:    string(res.InterruptReason),
		})
	default:
		snd.send(ServerMessage{
			Kind:           KindResponse,
			SessionID:      s.id,
			TurnID:         res.TurnID,
			Transcript:     res.Transcript,
			Text:           res.ResponseText,
			TranslatedText: res.TranslatedText,
			Audio:          encodeAudio(res.Audio),
			AudioMIME:      res.AudioMIME,
		})
	}
}

func (m *Manager) handleInterrupt(snd sender, msg *ClientMessage) {
	s := m.lookup(msg.SessionID)
	if s == nil {
		snd.send(errorMessage(CodeSessionNotFound, "session not started"))
		return
	}
	s.touch(time.Now())

	if msg.TurnID != "" {
		m.cfg.Fabric.Cancel(msg.SessionID, msg.TurnID, types.InterruptUserBargeIn)
		return
	}
	m.cfg.Fabric.CancelActive(msg.SessionID, types.InterruptUserBargeIn)
}

// Stop tears a session down: cancels any active turn with reason manual,
// acknowledges with session_stopped, and drops the entry.
func (m *Manager) Stop(ctx context.Context, sessionID string) {
	s := m.remove(sessionID)
	if s == nil {
		return
	}
	m.cfg.Fabric.CancelActive(sessionID, types.InterruptManual)
	s.sender.send(ServerMessage{Kind: KindSessionStopped, SessionID: sessionID})
	m.cfg.Metrics.ActiveSessions.Add(ctx, -1)
}

// Disconnect cleans up after a dropped connection without emitting messages.
func (m *Manager) Disconnect(ctx context.Context, sessionID string) {
	if s := m.remove(sessionID); s != nil {
		m.cfg.Fabric.CancelActive(sessionID, types.InterruptError)
		m.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	}
}
