package anthropic

import (
	"reflect"
	"testing"

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

// TestNormalizeTools_Shape checks the projected input_schema.
func TestNormalizeTools_Shape(t *testing.T) {
	tools := NormalizeTools(testSpecs())
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	tool := tools[0].OfTool
	if tool == nil {
		t.Fatal("expected OfTool to be set")
	}
	if tool.Name != "search_papers" {
		t.Errorf("expected name search_papers, got %s", tool.Name)
	}

	props := tool.InputSchema.Properties.(map[string]any)
	topic := props["topic"].(map[string]any)
	if topic["type"] != "string" {
		t.Errorf("expected lowercase type token, got %v", topic["type"])
	}
	// This dialect can express defaults, so they stay in the wire schema.
	mr := props["max_results"].(map[string]any)
	if mr["default"] != 5 {
		t.Errorf("expected default 5 in wire schema, got %v", mr["default"])
	}
	if !reflect.DeepEqual(tool.InputSchema.Required, []string{"topic"}) {
		t.Errorf("expected required [topic], got %v", tool.InputSchema.Required)
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

// TestConvertMessage_ToolResult checks that tool results become user-role
// tool_result blocks tagged with the originating call ID.
func TestConvertMessage_ToolResult(t *testing.T) {
	msg, err := convertMessage(types.Message{
		Role:       "tool",
		Content:    `["P1","P2"]`,
		ToolCallID: "toolu_01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Role) != "user" {
		t.Errorf("expected user role, got %s", msg.Role)
	}
	if len(msg.Content) != 1 || msg.Content[0].OfToolResult == nil {
		t.Fatal("expected a single tool_result block")
	}
	if msg.Content[0].OfToolResult.ToolUseID != "toolu_01" {
		t.Errorf("expected ToolUseID toolu_01, got %s", msg.Content[0].OfToolResult.ToolUseID)
	}
}

// TestConvertMessage_AssistantWithToolCalls checks tool_use block conversion.
func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	msg, err := convertMessage(types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "toolu_01", Name: "search_papers", Arguments: `{"topic":"quantum"}`},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Content) != 1 || msg.Content[0].OfToolUse == nil {
		t.Fatal("expected a single tool_use block")
	}
	tu := msg.Content[0].OfToolUse
	if tu.ID != "toolu_01" || tu.Name != "search_papers" {
		t.Errorf("unexpected tool_use block: %+v", tu)
	}
}

// TestConvertMessage_UnknownRole checks that unsupported roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(types.Message{Role: "system", Content: "x"}); err == nil {
		t.Fatal("expected error for system role, got nil")
	}
}

// TestNew_Validation ensures constructor input checks.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "claude-3-5-sonnet-latest"); err == nil {
		t.Fatal("expected error for empty API key")
	}
	if _, err := New("sk-ant-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("sk-ant-test", "claude-3-5-sonnet-latest", WithBaseURL("https://proxy.example.com")); err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// TestModelCapabilities checks the Claude capability table.
func TestModelCapabilities(t *testing.T) {
	caps := modelCapabilities("claude-3-5-sonnet-latest")
	if caps.ContextWindow != 200_000 {
		t.Errorf("expected context window 200000, got %d", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling {
		t.Error("expected SupportsToolCalling=true")
	}
	if modelCapabilities("claude-3-opus-latest").MaxOutputTokens != 4_096 {
		t.Error("expected claude-3-opus MaxOutputTokens=4096")
	}
}
