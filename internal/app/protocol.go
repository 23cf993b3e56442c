// Package app is the realtime session edge: it accepts WebSocket
// connections, speaks the framed JSON session protocol, and drives the turn
// orchestrator. One connection carries one session; turns within a session
// are strictly serialized.
package app

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vaani-ai/vaani/pkg/types"
)

// Client event kinds.
const (
	KindStart     = "start"
	KindAudio     = "audio"
	KindText      = "text"
	KindInterrupt = "interrupt"
	KindStop      = "stop"
)

// Server message kinds.
const (
	KindSessionStarted = "session_started"
	KindConfigLoaded   = "config_loaded"
	KindResponse       = "response"
	KindInterrupted    = "interrupted"
	KindError          = "error"
	KindSessionStopped = "session_stopped"
)

// Stable error codes surfaced to clients. Stage exception types never cross
// the wire.
const (
	CodeInvalidMessage  = "invalid_message"
	CodeBadAudio        = "bad_audio"
	CodeSessionNotFound = "session_not_found"
	CodeTurnFailed      = "turn_failed"
	CodeInternal        = "internal_error"
)

// ClientMessage is the envelope for every client event. Unused fields stay
// zero for kinds that do not carry them.
type ClientMessage struct {
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId"`

	// start
	ConfigID          string `json:"configId,omitempty"`
	OptimizationLevel string `json:"optimizationLevel,omitempty"`
	TargetLanguage    string `json:"targetLanguage,omitempty"`

	// audio
	Audio     string `json:"audio,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// interrupt
	TurnID string `json:"turnId,omitempty"`
}

// Validate checks the per-kind required fields.
func (m *ClientMessage) Validate() error {
	if m.SessionID == "" {
		return fmt.Errorf("app: %s: missing sessionId", m.Kind)
	}
	switch m.Kind {
	case KindStart, KindInterrupt, KindStop:
		return nil
	case KindAudio:
		if m.Audio == "" {
			return fmt.Errorf("app: audio: missing payload")
		}
		return nil
	case KindText:
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("app: text: missing text")
		}
		return nil
	default:
		return fmt.Errorf("app: unknown message kind %q", m.Kind)
	}
}

// ServerMessage is the envelope for every server event.
type ServerMessage struct {
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId,omitempty"`

	// config_loaded
	OptimizationLevel string `json:"optimizationLevel,omitempty"`
	TargetLanguage    string `json:"targetLanguage,omitempty"`

	// response / interrupted
	TurnID         string `json:"turnId,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	Text           string `json:"text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	Audio          string `json:"audio,omitempty"`
	AudioMIME      string `json:"audio_mime,omitempty"`
	Reason         string `json:"reason,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func errorMessage(code, msg string) ServerMessage {
	return ServerMessage{Kind: KindError, Code: code, Message: msg}
}

// dataURLPrefix matches a leading data-URL header such as
// "data:audio/webm;codecs=opus;base64,".
var dataURLPrefix = regexp.MustCompile(`^data:audio/[^,]*;base64,`)

// DecodeAudio strips an optional data-URL prefix and base64-decodes the
// payload. Raw and prefixed forms of the same bytes decode identically.
func DecodeAudio(payload string) ([]byte, error) {
	raw := dataURLPrefix.ReplaceAllString(payload, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("app: decode audio: %w", err)
	}
	return data, nil
}

// ParseClientMessage decodes one frame.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("app: parse message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// parseTier maps the wire optimization level onto a known tier, falling back
// to the session default when absent or unknown.
func parseTier(level string, fallback types.OptimizationTier) types.OptimizationTier {
	if level == "" {
		return fallback
	}
	t := types.OptimizationTier(level)
	if t.IsValid() {
		return t
	}
	return fallback
}
