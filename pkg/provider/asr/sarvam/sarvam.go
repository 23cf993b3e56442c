// Package sarvam provides a Sarvam AI-backed ASR provider using the Saarika
// speech-to-text REST API. It implements the asr.Provider interface.
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/asr"
	"github.com/vaani-ai/vaani/pkg/provider/httpx"
)

const (
	defaultEndpoint = "https://api.sarvam.ai/speech-to-text"
	defaultModel    = "saarika:v2"

	providerName = "sarvam"
)

// Option is a functional option for configuring the Sarvam ASR Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithModel sets the Saarika model identifier.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(p *Provider) { p.client = httpx.NewClient(providerName, httpx.WithHTTPClient(h)) }
}

// Provider implements asr.Provider backed by the Sarvam Saarika API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	client   *httpx.Client
}

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

// New creates a Sarvam ASR Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam asr: apiKey must not be empty")
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

// Name implements asr.Provider.
func (p *Provider) Name() string { return providerName }

// sttResponse mirrors the Saarika speech-to-text response body.
type sttResponse struct {
	Transcript   string  `json:"transcript"`
	LanguageCode string  `json:"language_code"`
	Confidence   float64 `json:"confidence"`
	DurationMS   int64   `json:"duration_ms"`
}

// Transcribe implements asr.Provider. The utterance is uploaded as a
// multipart form; the multipart body is rebuilt on every retry attempt.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("sarvam asr: empty audio")
	}

	build := func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		fw, err := mw.CreateFormFile("file", "utterance."+format(req.Format))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(req.Audio); err != nil {
			return nil, err
		}
		if err := mw.WriteField("model", p.model); err != nil {
			return nil, err
		}
		lang := req.LanguageHint
		if lang == "" {
			lang = "unknown" // Saarika's auto-detect sentinel.
		}
		if err := mw.WriteField("language_code", lang); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", mw.FormDataContentType())
		httpReq.Header.Set("api-subscription-key", p.apiKey)
		if req.SessionID != "" {
			httpReq.Header.Set("X-Session-ID", req.SessionID)
		}
		return httpReq, nil
	}

	var out sttResponse
	err := p.client.Do(ctx, "transcribe", build, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("sarvam asr: decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &asr.Result{
		Text:             out.Transcript,
		DetectedLanguage: out.LanguageCode,
		Confidence:       out.Confidence,
		DurationMS:       out.DurationMS,
	}, nil
}

// format normalises the audio format field for the upload filename.
func format(f string) string {
	if f == "" {
		return "wav"
	}
	return f
}
