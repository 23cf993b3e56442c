// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// text-to-speech REST API. It implements the tts.Provider interface and is
// the usual fallback when the primary provider does not cover a language.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/httpx"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

const (
	endpointFmt  = "https://api.elevenlabs.io/v1/text-to-speech/%s"
	defaultModel = "eleven_multilingual_v2"

	providerName = "elevenlabs"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpointFormat overrides the endpoint format string, mainly for tests.
// It must contain exactly one %s verb for the voice ID.
func WithEndpointFormat(format string) Option {
	return func(p *Provider) { p.endpointFmt = format }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(p *Provider) { p.client = httpx.NewClient(providerName, httpx.WithHTTPClient(h)) }
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	apiKey      string
	model       string
	endpointFmt string
	client      *httpx.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates an ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		model:       defaultModel,
		endpointFmt: endpointFmt,
		client:      httpx.NewClient(providerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return providerName }

// SupportsLanguage implements tts.Provider. The multilingual model covers
// every language the pipeline produces, so this always reports true.
func (p *Provider) SupportsLanguage(string) bool { return true }

// ---- wire types ----

type synthRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Provider. The response body is the encoded audio
// directly; ElevenLabs selects the container from the output_format query.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if req.Text == "" {
		return nil, errors.New("elevenlabs: empty input")
	}
	if req.VoiceID == "" {
		return nil, errors.New("elevenlabs: voice ID required")
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if req.Tuning.Pace != 0 {
		vs.Speed = req.Tuning.Pace
	}
	body := synthRequest{
		Text:          req.Text,
		ModelID:       p.model,
		LanguageCode:  shortLang(req.Language),
		VoiceSettings: vs,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf(p.endpointFmt, req.VoiceID) + "?output_format=" + outputFormat(req.Codec, sampleRate)

	var audio []byte
	err = p.client.Do(ctx, "synthesize",
		func(ctx context.Context) (*http.Request, error) {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			httpReq.Header.Set("xi-api-key", p.apiKey)
			httpReq.Header.Set("Content-Type", "application/json")
			return httpReq, nil
		},
		func(resp *http.Response) error {
			audio, err = io.ReadAll(resp.Body)
			return err
		})
	if err != nil {
		return nil, err
	}

	return &tts.Result{
		Audio:          audio,
		Codec:          normalizeCodec(req.Codec),
		SampleRate:     sampleRate,
		CharacterCount: len([]rune(req.Text)),
	}, nil
}

// shortLang reduces a BCP-47 tag to its primary subtag ("hi-IN" → "hi"),
// which is what the ElevenLabs language_code field expects.
func shortLang(lang string) string {
	for i := 0; i < len(lang); i++ {
		if lang[i] == '-' {
			return lang[:i]
		}
	}
	return lang
}

// outputFormat maps the requested codec and sample rate to an ElevenLabs
// output_format value. Unknown codecs fall back to MP3.
func outputFormat(codec string, sampleRate int) string {
	switch codec {
	case "wav", "pcm":
		return fmt.Sprintf("pcm_%d", sampleRate)
	default:
		return fmt.Sprintf("mp3_%d_128", sampleRate)
	}
}

func normalizeCodec(codec string) string {
	switch codec {
	case "wav", "pcm":
		return codec
	default:
		return "mp3"
	}
}
