// Package sarvam provides a Sarvam AI-backed LLM provider using the
// chat-completions REST API. It implements the llm.Provider interface.
package sarvam

import (
	"context"
	"errors"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/httpx"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
)

const (
	defaultEndpoint = "https://api.sarvam.ai/v1/chat/completions"
	defaultModel    = "sarvam-m"

	providerName = "sarvam"
)

// Option is a functional option for configuring the Sarvam LLM Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithModel selects the Sarvam model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(p *Provider) { p.client = httpx.NewClient(providerName, httpx.WithHTTPClient(h)) }
}

// Provider implements llm.Provider backed by the Sarvam chat API, which
// speaks an OpenAI-compatible completions dialect.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	client   *httpx.Client
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Sarvam LLM Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam llm: apiKey must not be empty")
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

// Name implements llm.Provider.
func (p *Provider) Name() string { return providerName }

// ModelInfo implements llm.Provider.
func (p *Provider) ModelInfo() llm.ModelInfo { return llm.LookupModel(p.model) }

// ---- wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("sarvam llm: empty messages")
	}

	body := chatRequest{
		Model:       p.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{"api-subscription-key": p.apiKey}
	if req.SessionID != "" {
		headers["X-Session-ID"] = req.SessionID
	}

	var out chatResponse
	if err := p.client.DoJSON(ctx, "generate", http.MethodPost, p.endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("sarvam llm: empty choices in response")
	}

	choice := out.Choices[0]
	return &llm.GenerateResult{
		Text:         choice.Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
	}, nil
}
