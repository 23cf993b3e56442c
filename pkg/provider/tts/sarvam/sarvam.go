// Package sarvam provides a Sarvam AI-backed TTS provider using the Bulbul
// text-to-speech REST API. It implements the tts.Provider interface.
package sarvam

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/httpx"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

const (
	defaultEndpoint = "https://api.sarvam.ai/text-to-speech"
	defaultModel    = "bulbul:v2"

	providerName = "sarvam"
)

// supportedLanguages is the Bulbul language set: ten Indic languages plus
// Indian English.
var supportedLanguages = map[string]bool{
	"hi-IN": true, "bn-IN": true, "ta-IN": true, "te-IN": true,
	"gu-IN": true, "kn-IN": true, "ml-IN": true, "mr-IN": true,
	"pa-IN": true, "od-IN": true, "en-IN": true,
}

// Option is a functional option for configuring the Sarvam TTS Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithModel sets the Bulbul model ID.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(p *Provider) { p.client = httpx.NewClient(providerName, httpx.WithHTTPClient(h)) }
}

// Provider implements tts.Provider backed by the Sarvam Bulbul API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	client   *httpx.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a Sarvam TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		model:    defaultModel,
		client:   httpx.NewClient(providerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return providerName }

// SupportsLanguage implements tts.Provider.
func (p *Provider) SupportsLanguage(lang string) bool { return supportedLanguages[lang] }

// ---- wire types ----

type synthRequest struct {
	Inputs             []string `json:"inputs"`
	TargetLanguageCode string   `json:"target_language_code"`
	Speaker            string   `json:"speaker,omitempty"`
	Pitch              float64  `json:"pitch,omitempty"`
	Pace               float64  `json:"pace,omitempty"`
	Loudness           float64  `json:"loudness,omitempty"`
	SpeechSampleRate   int      `json:"speech_sample_rate,omitempty"`
	Model              string   `json:"model"`
}

type synthResponse struct {
	Audios []string `json:"audios"`
}

// Synthesize implements tts.Provider. Bulbul returns base64-encoded WAV; the
// requested codec is ignored and the result always reports "wav".
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if req.Text == "" {
		return nil, errors.New("sarvam tts: empty input")
	}
	if req.Language == "" {
		return nil, errors.New("sarvam tts: language required")
	}
	if !p.SupportsLanguage(req.Language) {
		return nil, fmt.Errorf("sarvam tts: unsupported language %q", req.Language)
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}

	body := synthRequest{
		Inputs:             []string{req.Text},
		TargetLanguageCode: req.Language,
		Speaker:            req.VoiceID,
		Pitch:              req.Tuning.Pitch,
		Pace:               req.Tuning.Pace,
		Loudness:           req.Tuning.Loudness,
		SpeechSampleRate:   sampleRate,
		Model:              p.model,
	}

	headers := map[string]string{"api-subscription-key": p.apiKey}
	if req.SessionID != "" {
		headers["X-Session-ID"] = req.SessionID
	}

	var out synthResponse
	if err := p.client.DoJSON(ctx, "synthesize", http.MethodPost, p.endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Audios) == 0 {
		return nil, errors.New("sarvam tts: response contained no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: decode audio: %w", err)
	}

	return &tts.Result{
		Audio:          audio,
		Codec:          "wav",
		SampleRate:     sampleRate,
		CharacterCount: len([]rune(req.Text)),
	}, nil
}
