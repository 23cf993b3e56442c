package app

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/vaani-ai/vaani/internal/interrupt"
	"github.com/vaani-ai/vaani/internal/store/memstore"
	"github.com/vaani-ai/vaani/internal/turn"
	"github.com/vaani-ai/vaani/pkg/types"
)

// chanSender delivers server messages to the test over a buffered channel.
type chanSender struct {
	ch     chan ServerMessage
	closed chan string
}

func newChanSender() *chanSender {
	return &chanSender{ch: make(chan ServerMessage, 32), closed: make(chan string, 1)}
}

func (s *chanSender) send(msg ServerMessage) { s.ch <- msg }
func (s *chanSender) close(reason string)    { s.closed <- reason }

func (s *chanSender) next(t *testing.T) ServerMessage {
	t.Helper()
	select {
	case m := <-s.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a server message")
		return ServerMessage{}
	}
}

// stubRunner records requests and answers with a canned result.
type stubRunner struct {
	mu   sync.Mutex
	reqs []turn.Request

	result *turn.Result
	err    error
}

func (r *stubRunner) Run(ctx context.Context, req turn.Request) (*turn.Result, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &turn.Result{
		TurnID:       "t1",
		Transcript:   req.Text,
		ResponseText: "ok",
		Status:       types.TurnSuccessful,
	}, nil
}

func (r *stubRunner) requests() []turn.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]turn.Request(nil), r.reqs...)
}

func newTestManager(runner Runner) (*Manager, *interrupt.Fabric) {
	fabric := interrupt.New()
	m := NewManager(ManagerConfig{
		Runner: runner,
		Store:  memstore.New(),
		Fabric: fabric,
	})
	return m, fabric
}

func startSession(t *testing.T, m *Manager, snd *chanSender, sessionID string) {
	t.Helper()
	m.Handle(context.Background(), snd, &ClientMessage{Kind: KindStart, SessionID: sessionID})
	if got := snd.next(t); got.Kind != KindSessionStarted {
		t.Fatalf("first message = %q, want session_started", got.Kind)
	}
}

func TestManager_StartAndTextTurn(t *testing.T) {
	runner := &stubRunner{}
	m, _ := newTestManager(runner)
	snd := newChanSender()

	startSession(t, m, snd, "s1")

	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindText, SessionID: "s1", Text: "hello",
	})

	got := snd.next(t)
	if got.Kind != KindResponse {
		t.Fatalf("kind = %q, want response", got.Kind)
	}
	if got.Text != "ok" || got.TurnID != "t1" {
		t.Errorf("response = %+v", got)
	}
	if reqs := runner.requests(); len(reqs) != 1 || reqs[0].Text != "hello" {
		t.Errorf("runner saw %+v", reqs)
	}
}

func TestManager_StartWithConfigLoadsSettings(t *testing.T) {
	runner := &stubRunner{}
	m, _ := newTestManager(runner)

	err := m.cfg.Store.Configs().Save(context.Background(), types.SessionConfiguration{
		ID:               "cfg1",
		Owner:            "alice",
		Name:             "hindi support",
		OptimizationTier: types.TierQuality,
		TargetLanguage:   "hi-IN",
		TTSProvider:      "sarvam",
		SystemPromptText: "You are a support agent.",
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	snd := newChanSender()
	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindStart, SessionID: "s1", ConfigID: "cfg1",
	})

	if got := snd.next(t); got.Kind != KindSessionStarted {
		t.Fatalf("first message = %q", got.Kind)
	}
	loaded := snd.next(t)
	if loaded.Kind != KindConfigLoaded {
		t.Fatalf("second message = %q, want config_loaded", loaded.Kind)
	}
	if loaded.OptimizationLevel != string(types.TierQuality) || loaded.TargetLanguage != "hi-IN" {
		t.Errorf("config_loaded = %+v", loaded)
	}

	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindText, SessionID: "s1", Text: "hi",
	})
	snd.next(t)

	req := runner.requests()[0]
	if req.Tier != types.TierQuality || req.TargetLanguage != "hi-IN" ||
		req.System != "You are a support agent." || req.TTSProvider != "sarvam" {
		t.Errorf("turn request = %+v", req)
	}
}

func TestManager_AudioTurnDecodesPayload(t *testing.T) {
	runner := &stubRunner{}
	m, _ := newTestManager(runner)
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindAudio, SessionID: "s1",
		Audio: "data:audio/wav;base64," + payload,
	})
	snd.next(t)

	reqs := runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("runner saw %d requests, want 1", len(reqs))
	}
	if got := reqs[0].Audio; len(got) != 3 || got[0] != 1 {
		t.Errorf("audio = %v, want decoded bytes", got)
	}
}

func TestManager_BadAudioIsNonFatal(t *testing.T) {
	runner := &stubRunner{}
	m, _ := newTestManager(runner)
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindAudio, SessionID: "s1", Audio: "!!!not base64!!!",
	})
	if got := snd.next(t); got.Kind != KindError || got.Code != CodeBadAudio {
		t.Fatalf("got %+v, want bad_audio error", got)
	}

	// The session survives and serves the next event.
	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindText, SessionID: "s1", Text: "still here",
	})
	if got := snd.next(t); got.Kind != KindResponse {
		t.Errorf("kind = %q, want response after dropped chunk", got.Kind)
	}
}

func TestManager_NewEventCancelsActiveTurn(t *testing.T) {
	runner := &stubRunner{}
	m, fabric := newTestManager(runner)
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	tok := fabric.StartTurn(context.Background(), "s1", "t-old")

	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindText, SessionID: "s1", Text: "new question",
	})
	snd.next(t)

	if !tok.Cancelled() {
		t.Fatal("prior turn not cancelled")
	}
	if got := tok.Reason(); got != types.InterruptReplaced {
		t.Errorf("reason = %q, want replaced for a text event", got)
	}
}

func TestManager_SpeechCancelsWithBargeIn(t *testing.T) {
	runner := &stubRunner{}
	m, fabric := newTestManager(runner)
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	tok := fabric.StartTurn(context.Background(), "s1", "t-old")

	payload := base64.StdEncoding.EncodeToString([]byte{9})
	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindAudio, SessionID: "s1", Audio: payload,
	})
	snd.next(t)

	if got := tok.Reason(); got != types.InterruptUserBargeIn {
		t.Errorf("reason = %q, want user_barge_in for speech", got)
	}
}

func TestManager_InterruptCancelsNamedTurn(t *testing.T) {
	m, fabric := newTestManager(&stubRunner{})
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	tok := fabric.StartTurn(context.Background(), "s1", "t7")
	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindInterrupt, SessionID: "s1", TurnID: "t7",
	})

	if !tok.Cancelled() || tok.Reason() != types.InterruptUserBargeIn {
		t.Errorf("cancelled=%v reason=%q", tok.Cancelled(), tok.Reason())
	}
}

func TestManager_UnknownSessionRejected(t *testing.T) {
	m, _ := newTestManager(&stubRunner{})
	snd := newChanSender()

	m.Handle(context.Background(), snd, &ClientMessage{
		Kind: KindText, SessionID: "ghost", Text: "hi",
	})
	if got := snd.next(t); got.Code != CodeSessionNotFound {
		t.Errorf("code = %q, want session_not_found", got.Code)
	}
}

func TestManager_StopTearsDownSession(t *testing.T) {
	m, fabric := newTestManager(&stubRunner{})
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	tok := fabric.StartTurn(context.Background(), "s1", "t1")
	m.Handle(context.Background(), snd, &ClientMessage{Kind: KindStop, SessionID: "s1"})

	if got := snd.next(t); got.Kind != KindSessionStopped {
		t.Fatalf("kind = %q, want session_stopped", got.Kind)
	}
	if tok.Reason() != types.InterruptManual {
		t.Errorf("reason = %q, want manual", tok.Reason())
	}
	if m.lookup("s1") != nil {
		t.Error("session still registered after stop")
	}
}

func TestManager_ReapIdleDestroysStaleSessions(t *testing.T) {
	m, _ := newTestManager(&stubRunner{})
	snd := newChanSender()
	startSession(t, m, snd, "s1")

	m.reapIdle(time.Now().Add(10 * time.Minute))

	if got := snd.next(t); got.Kind != KindSessionStopped {
		t.Fatalf("kind = %q, want session_stopped", got.Kind)
	}
	select {
	case <-snd.closed:
	case <-time.After(time.Second):
		t.Error("connection not closed on idle expiry")
	}
	if m.lookup("s1") != nil {
		t.Error("idle session still registered")
	}
}
