// Package httpx provides the shared outbound HTTP plumbing used by all
// provider adapters: a retrying JSON client with capped exponential backoff
// and the provider error taxonomy the orchestrator branches on.
//
// Retry policy: at most Attempts tries per call. Transient failures (network
// errors, timeouts, 5xx, 429) are retried with exponential backoff starting
// at Base and capped at Cap, with up to 25% random jitter. Other 4xx
// responses fail immediately. Context cancellation aborts the retry loop and
// is surfaced as the context's error, never as a provider failure.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	defaultAttempts = 3
	defaultBase     = 300 * time.Millisecond
	defaultCap      = 5 * time.Second
)

// ProviderError describes a failed provider call. Retryable distinguishes
// transient failures (safe to retry or fail over) from permanent ones.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d (retryable=%t)", e.Provider, e.Op, e.StatusCode, e.Retryable)
	}
	return fmt.Sprintf("%s: %s: %v (retryable=%t)", e.Provider, e.Op, e.Err, e.Retryable)
}

// Unwrap returns the underlying transport error, if any.
func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a retryable provider error. Unknown
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// RetryConfig tunes the backoff loop. Zero values take the documented
// defaults.
type RetryConfig struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.Base <= 0 {
		c.Base = defaultBase
	}
	if c.Cap <= 0 {
		c.Cap = defaultCap
	}
	return c
}

// Client is a retrying HTTP client scoped to one provider. It is safe for
// concurrent use; adapters share one Client per provider instance.
type Client struct {
	provider string
	http     *http.Client
	retry    RetryConfig

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client (connection pool,
// transport-level timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg.withDefaults() }
}

// NewClient creates a Client for the named provider.
func NewClient(provider string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		http:     &http.Client{Timeout: 60 * time.Second},
		retry:    RetryConfig{}.withDefaults(),
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do executes build() with retries and hands each successful response to
// handle. build is called once per attempt so request bodies are re-created
// rather than re-read. handle is only invoked for 2xx responses; it must
// fully consume the body it needs (Do closes the body afterwards).
func (c *Client) Do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error), handle func(*http.Response) error) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := build(ctx)
		if err != nil {
			return &ProviderError{Provider: c.provider, Op: op, Err: err, Retryable: false}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			// Network and timeout failures are transient.
			lastErr = &ProviderError{Provider: c.provider, Op: op, Err: err, Retryable: true}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := handle(resp)
			resp.Body.Close()
			return err
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		lastErr = &ProviderError{
			Provider:   c.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  retryable,
			Body:       string(body),
		}
		if !retryable {
			return lastErr
		}
	}
	return lastErr
}

// DoJSON posts a JSON body and decodes a JSON response, with the standard
// retry policy. headers may be nil.
func (c *Client) DoJSON(ctx context.Context, op, method, url string, headers map[string]string, reqBody, respBody any) error {
	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return &ProviderError{Provider: c.provider, Op: op, Err: err}
		}
	}

	build := func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if encoded != nil {
			r = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, err
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	return c.Do(ctx, op, build, func(resp *http.Response) error {
		if respBody == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return &ProviderError{Provider: c.provider, Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	})
}

// backoff returns the delay before the given attempt (attempt ≥ 1), with
// jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retry.Base << (attempt - 1)
	if d > c.retry.Cap {
		d = c.retry.Cap
	}
	// Up to 25% jitter to avoid thundering herds on provider recovery.
	jitter := time.Duration(rand.Int64N(int64(d)/4 + 1))
	return d + jitter
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
