// Package sarvam provides a Sarvam AI-backed translation provider using the
// Mayura text-translation REST API. It implements the translate.Provider
// interface.
package sarvam

import (
	"context"
	"errors"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/httpx"
	"github.com/vaani-ai/vaani/pkg/provider/translate"
)

const (
	defaultEndpoint = "https://api.sarvam.ai/translate"
	defaultModel    = "mayura:v1"

	providerName = "sarvam"
)

// Option is a functional option for configuring the Sarvam translate
// Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(p *Provider) { p.client = httpx.NewClient(providerName, httpx.WithHTTPClient(h)) }
}

// Provider implements translate.Provider backed by the Sarvam Mayura API.
type Provider struct {
	apiKey   string
	endpoint string
	client   *httpx.Client
}

var _ translate.Provider = (*Provider)(nil)

// New creates a Sarvam translate Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam translate: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   httpx.NewClient(providerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return providerName }

// ---- wire types ----

type translateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	Model              string `json:"model"`
	Mode               string `json:"mode,omitempty"`
	EnableCodeMixing   bool   `json:"enable_code_mixing,omitempty"`
	OutputScript       string `json:"output_script,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate implements translate.Provider. The formality level is mapped to
// Mayura's mode field; code mixing is passed through.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	if req.Text == "" {
		return nil, errors.New("sarvam translate: empty input")
	}
	if req.TargetLang == "" {
		return nil, errors.New("sarvam translate: target language required")
	}

	source := req.SourceLang
	if source == "" {
		source = "auto"
	}

	body := translateRequest{
		Input:              req.Text,
		SourceLanguageCode: source,
		TargetLanguageCode: req.TargetLang,
		Model:              defaultModel,
		Mode:               string(translate.FormalityMode(req.Config.FormalityLevel)),
		EnableCodeMixing:   req.Config.CodeMixing,
	}

	headers := map[string]string{"api-subscription-key": p.apiKey}
	if req.SessionID != "" {
		headers["X-Session-ID"] = req.SessionID
	}

	var out translateResponse
	if err := p.client.DoJSON(ctx, "translate", http.MethodPost, p.endpoint, headers, body, &out); err != nil {
		return nil, err
	}

	return &translate.Result{
		Text:      out.TranslatedText,
		CharCount: len([]rune(req.Text)),
	}, nil
}
