package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastClient returns a Client whose backoff sleeps are skipped.
func fastClient(provider string, opts ...Option) *Client {
	c := NewClient(provider, opts...)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func TestDoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") != "secret" {
			t.Errorf("missing header, got %q", r.Header.Get("X-Key"))
		}
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Value string `json:"value"`
	}
	c := fastClient("test")
	err := c.DoJSON(context.Background(), "op", http.MethodPost, srv.URL,
		map[string]string{"X-Key": "secret"}, map[string]string{"q": "x"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Value != "ok" {
		t.Errorf("value = %q, want ok", out.Value)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := fastClient("test")
	err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

// A provider that fails forever must be tried exactly Attempts times.
func TestDo_RetryCap(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := fastClient("test", WithRetry(RetryConfig{Attempts: 3}))
	err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want exactly 3", got)
	}
	if !IsRetryable(err) {
		t.Errorf("exhausted 5xx should still report retryable: %v", err)
	}
}

func TestDo_PermanentFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := fastClient("test")
	err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Retryable {
		t.Error("401 must not be retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDo_429IsRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := fastClient("test")
	if err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDo_CancelledContextSurfacesContextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := fastClient("test")
	err := c.DoJSON(ctx, "op", http.MethodGet, srv.URL, nil, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoff_Capped(t *testing.T) {
	c := NewClient("test", WithRetry(RetryConfig{Attempts: 10, Base: 300 * time.Millisecond, Cap: 5 * time.Second}))
	for attempt := 1; attempt < 10; attempt++ {
		d := c.backoff(attempt)
		if d > 5*time.Second+5*time.Second/4 {
			t.Errorf("attempt %d: backoff %v exceeds cap plus jitter", attempt, d)
		}
	}
}
