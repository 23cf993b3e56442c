// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Sarvam Bulbul or
// ElevenLabs) and presents a uniform one-shot interface: text in, encoded
// audio out. Voice selection, caching, and fallback across providers are the
// caller's concern.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/vaani-ai/vaani/pkg/types"
)

// Request carries one utterance to synthesize.
type Request struct {
	Text string

	// VoiceID is the provider-specific voice identifier.
	VoiceID string

	// Language is a BCP-47 code such as "hi-IN".
	Language string

	// Codec names the desired output encoding (e.g. "wav", "mp3").
	Codec string

	// SampleRate is the desired output sample rate in Hz.
	SampleRate int

	// Tuning adjusts prosody. Zero values mean provider defaults.
	Tuning types.TTSTuning

	SessionID string
	TurnID    string
}

// Result is the synthesized audio plus billing information.
type Result struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// Codec and SampleRate describe what was actually produced, which may
	// differ from the request when the provider does not support the asked-for
	// encoding.
	Codec      string
	SampleRate int

	// CharacterCount is the billed character count of the input text.
	CharacterCount int
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple sessions
// synthesize in parallel.
type Provider interface {
	// Synthesize converts req.Text to audio in the requested voice. Returns an
	// error if the voice is unknown or the backend is unreachable.
	Synthesize(ctx context.Context, req Request) (*Result, error)

	// SupportsLanguage reports whether the provider can synthesize speech in
	// the given BCP-47 language. Fallback chains consult this before routing a
	// request.
	SupportsLanguage(lang string) bool

	// Name returns the provider identifier used in cost entries and metrics.
	Name() string
}
