package anyllm

import (
	"reflect"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/scholar/pkg/types"
)

func testSpecs() []types.ToolSpec {
	return []types.ToolSpec{
		{
			Name:        "search_papers",
			Description: "Search for papers and store the results.",
			Params: []types.ToolParam{
				{Name: "topic", Type: "string", Description: "The topic to search for.", Required: true},
				{Name: "max_results", Type: "integer", Description: "Maximum number of results.", Default: 5},
			},
		},
	}
}

// ── NormalizeTools ────────────────────────────────────────────────────────────

// TestNormalizeTools_Shape checks the projected unified function schema.
func TestNormalizeTools_Shape(t *testing.T) {
	tools := NormalizeTools(testSpecs())
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Type != "function" {
		t.Errorf("expected type function, got %q", tools[0].Type)
	}
	fn := tools[0].Function
	if fn.Name != "search_papers" {
		t.Errorf("expected name search_papers, got %q", fn.Name)
	}
	props := fn.Parameters["properties"].(map[string]any)
	if props["topic"].(map[string]any)["type"] != "string" {
		t.Errorf("expected lowercase type token, got %v", props["topic"])
	}
	// The unified dialect can express defaults, so they stay in the schema.
	if props["max_results"].(map[string]any)["default"] != 5 {
		t.Errorf("expected default 5 in wire schema, got %v", props["max_results"])
	}
}

// TestNormalizeTools_Deterministic checks that two projections of the same
// catalog are structurally identical.
func TestNormalizeTools_Deterministic(t *testing.T) {
	a := NormalizeTools(testSpecs())
	b := NormalizeTools(testSpecs())
	if !reflect.DeepEqual(a, b) {
		t.Error("NormalizeTools is not deterministic for identical input")
	}
}

// ── convertMessage ────────────────────────────────────────────────────────────

// TestConvertMessage_User checks that user-role messages are converted correctly.
func TestConvertMessage_User(t *testing.T) {
	m := types.Message{Role: "user", Content: "Hello!"}
	got := convertMessage(m)
	if got.Role != "user" {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if got.ContentString() != "Hello!" {
		t.Errorf("expected content %q, got %q", "Hello!", got.ContentString())
	}
}

// TestConvertMessage_AssistantWithToolCalls checks tool call conversion.
func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	m := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "search_papers", Arguments: `{"topic":"quantum"}`},
		},
	}
	got := convertMessage(m)
	if got.Role != "assistant" {
		t.Errorf("expected role assistant, got %q", got.Role)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(got.ToolCalls))
	}
	tc := got.ToolCalls[0]
	if tc.ID != "call_1" {
		t.Errorf("expected ID call_1, got %q", tc.ID)
	}
	if tc.Function.Name != "search_papers" {
		t.Errorf("expected function name search_papers, got %q", tc.Function.Name)
	}
	if tc.Type != "function" {
		t.Errorf("expected type function, got %q", tc.Type)
	}
}

// TestConvertMessage_Tool checks tool-result message conversion.
func TestConvertMessage_Tool(t *testing.T) {
	m := types.Message{Role: "tool", Content: `["P1"]`, ToolCallID: "call_1"}
	got := convertMessage(m)
	if got.Role != "tool" {
		t.Errorf("expected role tool, got %q", got.Role)
	}
	if got.ToolCallID != "call_1" {
		t.Errorf("expected ToolCallID call_1, got %q", got.ToolCallID)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities_DeepSeek checks deepseek capabilities.
func TestModelCapabilities_DeepSeek(t *testing.T) {
	caps := modelCapabilities("deepseek-chat")
	if caps.ContextWindow != 64_000 {
		t.Errorf("deepseek-chat: expected context window 64000, got %d", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling {
		t.Error("deepseek-chat: expected SupportsToolCalling=true")
	}
}

// TestModelCapabilities_Unknown checks that unknown models return safe defaults.
func TestModelCapabilities_Unknown(t *testing.T) {
	caps := modelCapabilities("my-custom-model")
	if caps.ContextWindow <= 0 {
		t.Error("unknown model: expected positive ContextWindow")
	}
	if caps.MaxOutputTokens <= 0 {
		t.Error("unknown model: expected positive MaxOutputTokens")
	}
}

// TestModelCapabilities_CaseInsensitive checks that model name matching is case-insensitive.
func TestModelCapabilities_CaseInsensitive(t *testing.T) {
	lower := modelCapabilities("deepseek-chat")
	upper := modelCapabilities("DEEPSEEK-CHAT")
	if lower.ContextWindow != upper.ContextWindow {
		t.Errorf("case should not matter: got %d vs %d", lower.ContextWindow, upper.ContextWindow)
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "deepseek-chat")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("deepseek", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestConvenienceConstructors checks all convenience constructors delegate correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewDeepSeek", func() (*Provider, error) { return NewDeepSeek("deepseek-chat", anyllmlib.WithAPIKey("sk-test")) }},
		{"NewMistral", func() (*Provider, error) {
			return NewMistral("mistral-large-latest", anyllmlib.WithAPIKey("sk-test"))
		}},
		{"NewGroq", func() (*Provider, error) { return NewGroq("llama-3.3-70b-versatile", anyllmlib.WithAPIKey("gsk-test")) }},
		{"NewLlamaCpp", func() (*Provider, error) { return NewLlamaCpp("llama3") }},
		{"NewLlamaFile", func() (*Provider, error) { return NewLlamaFile("llama3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}

// TestCapabilities_ReturnsForModel checks that Capabilities() delegates to modelCapabilities.
func TestCapabilities_ReturnsForModel(t *testing.T) {
	p := &Provider{model: "deepseek-chat"}
	caps := p.Capabilities()
	expected := modelCapabilities("deepseek-chat")
	if caps.ContextWindow != expected.ContextWindow {
		t.Errorf("expected ContextWindow %d, got %d", expected.ContextWindow, caps.ContextWindow)
	}
}
