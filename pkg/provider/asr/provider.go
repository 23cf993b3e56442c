// Package asr defines the Provider interface for speech-to-text backends.
//
// An ASR provider wraps a remote transcription API and exposes the narrow
// surface the turn orchestrator needs: one cancellable Transcribe call per
// utterance. Implementors must be safe for concurrent use and must propagate
// context cancellation promptly.
package asr

import "context"

// Request carries one utterance to transcribe.
type Request struct {
	// Audio is the complete utterance as encoded bytes.
	Audio []byte

	// Format is the container/codec of Audio (e.g., "wav", "webm").
	Format string

	// LanguageHint is a BCP-47 code guiding recognition. Empty requests
	// automatic language detection.
	LanguageHint string

	// SessionID and TurnID are forwarded for provider-side request tracing.
	SessionID string
	TurnID    string
}

// Result is a final transcription.
type Result struct {
	Text string

	// DetectedLanguage is the BCP-47 code the provider detected (or echoed
	// from the hint).
	DetectedLanguage string

	// Confidence is the overall confidence in [0,1]. Zero when the provider
	// does not report one.
	Confidence float64

	// DurationMS is the audio duration in milliseconds, used for billing.
	DurationMS int64
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts one utterance to text. It returns the provider's
	// final result or an error; transient provider failures are retried
	// internally with capped exponential backoff.
	Transcribe(ctx context.Context, req Request) (*Result, error)

	// Name returns the provider identifier used in cost entries and metrics.
	Name() string
}
