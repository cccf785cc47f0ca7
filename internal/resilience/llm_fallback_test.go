package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/provider/llm/mock"
	"github.com/MrWong99/scholar/pkg/types"
)

func TestLLMFallback_PrimarySuccess(t *testing.T) {
	primary := &mock.Provider{
		Responses: []*llm.CompletionResponse{{Content: "from primary"}},
	}
	secondary := &mock.Provider{
		Responses: []*llm.CompletionResponse{{Content: "from secondary"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from primary" {
		t.Errorf("content = %q, want from primary", resp.Content)
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Errorf("secondary was called %d times, want 0", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_FailoverToSecondary(t *testing.T) {
	primary := &mock.Provider{CompleteErr: errTest}
	secondary := &mock.Provider{
		Responses: []*llm.CompletionResponse{{Content: "from secondary"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Errorf("content = %q, want from secondary", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Errorf("primary was called %d times, want 1", len(primary.CompleteCalls))
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	primary := &mock.Provider{CompleteErr: errTest}
	secondary := &mock.Provider{CompleteErr: errTest}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_CapabilitiesFromPrimary(t *testing.T) {
	primary := &mock.Provider{
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 128000, SupportsToolCalling: true},
	}
	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", &mock.Provider{})

	caps := fb.Capabilities()
	if caps.ContextWindow != 128000 || !caps.SupportsToolCalling {
		t.Errorf("capabilities = %+v", caps)
	}
}
