package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/vaani-ai/vaani/pkg/provider/llm"
	llmmock "github.com/vaani-ai/vaani/pkg/provider/llm/mock"
)

func TestLLMFallback_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{Result: llm.GenerateResult{Text: "hello from primary"}}
	secondary := &llmmock.Provider{Result: llm.GenerateResult{Text: "hello from secondary"}}

	fb := NewLLMFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	res, err := fb.Generate(context.Background(), llm.GenerateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello from primary" {
		t.Errorf("text = %q, want 'hello from primary'", res.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.CallCount(), secondary.CallCount())
	}
}

func TestLLMFallback_Failover(t *testing.T) {
	primary := &llmmock.Provider{Err: errors.New("primary down")}
	secondary := &llmmock.Provider{Result: llm.GenerateResult{Text: "hello from secondary"}}

	fb := NewLLMFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	res, err := fb.Generate(context.Background(), llm.GenerateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello from secondary" {
		t.Errorf("text = %q, want 'hello from secondary'", res.Text)
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	primary := &llmmock.Provider{Err: errors.New("primary down")}
	secondary := &llmmock.Provider{Err: errors.New("secondary down")}

	fb := NewLLMFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback(secondary)

	if _, err := fb.Generate(context.Background(), llm.GenerateRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &llmmock.Provider{Err: errors.New("down")}
	secondary := &llmmock.Provider{Result: llm.GenerateResult{Text: "ok"}}

	fb := NewLLMFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback(secondary)

	for i := 0; i < 3; i++ {
		if _, err := fb.Generate(context.Background(), llm.GenerateRequest{}); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	if primary.CallCount() != 2 {
		t.Errorf("primary called %d times, want 2", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Errorf("secondary called %d times, want 3", secondary.CallCount())
	}
}

func TestLLMFallback_ModelInfoFromPrimary(t *testing.T) {
	primary := &llmmock.Provider{
		Info: llm.ModelInfo{ID: "sarvam-m", Provider: "sarvam", ContextWindow: 32_768},
	}

	fb := NewLLMFallback(primary, FallbackConfig{})

	info := fb.ModelInfo()
	if info.ID != "sarvam-m" {
		t.Errorf("model = %q, want sarvam-m", info.ID)
	}
	if fb.Name() != "mock" {
		t.Errorf("name = %q, want mock", fb.Name())
	}
}
