package gemini

import (
	"reflect"
	"testing"

	genai "github.com/google/generative-ai-go/genai"

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

// TestNormalizeTools_Shape checks the projected function declaration.
func TestNormalizeTools_Shape(t *testing.T) {
	tools := NormalizeTools(testSpecs())
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one tool with one declaration, got %+v", tools)
	}

	decl := tools[0].FunctionDeclarations[0]
	if decl.Name != "search_papers" {
		t.Errorf("expected name search_papers, got %s", decl.Name)
	}
	if decl.Parameters.Type != genai.TypeObject {
		t.Errorf("expected TypeObject, got %v", decl.Parameters.Type)
	}

	// Types map onto the enumerated uppercase tokens.
	if decl.Parameters.Properties["topic"].Type != genai.TypeString {
		t.Errorf("topic type = %v, want TypeString", decl.Parameters.Properties["topic"].Type)
	}
	if decl.Parameters.Properties["max_results"].Type != genai.TypeInteger {
		t.Errorf("max_results type = %v, want TypeInteger", decl.Parameters.Properties["max_results"].Type)
	}

	// The required list is derived the same way as for every other dialect.
	if !reflect.DeepEqual(decl.Parameters.Required, []string{"topic"}) {
		t.Errorf("required = %v, want [topic]", decl.Parameters.Required)
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

// TestNormalizeTools_Empty checks that an empty catalog produces no tools.
func TestNormalizeTools_Empty(t *testing.T) {
	if tools := NormalizeTools(nil); tools != nil {
		t.Errorf("expected nil tools for empty catalog, got %v", tools)
	}
}

// TestConvertMessages maps each role onto the Gemini content shape.
func TestConvertMessages(t *testing.T) {
	contents, err := convertMessages([]types.Message{
		{Role: "user", Content: "Find papers on graph theory."},
		{Role: "assistant", ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "search_papers", Arguments: `{"topic":"graph theory"}`},
		}},
		{Role: "tool", ToolName: "search_papers", ToolCallID: "call_1", Content: `["P1","P2"]`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}

	if contents[0].Role != "user" {
		t.Errorf("first role = %q, want user", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("second role = %q, want model", contents[1].Role)
	}
	fc, ok := contents[1].Parts[0].(genai.FunctionCall)
	if !ok {
		t.Fatalf("expected FunctionCall part, got %T", contents[1].Parts[0])
	}
	if fc.Name != "search_papers" || fc.Args["topic"] != "graph theory" {
		t.Errorf("unexpected function call: %+v", fc)
	}

	fr, ok := contents[2].Parts[0].(genai.FunctionResponse)
	if !ok {
		t.Fatalf("expected FunctionResponse part, got %T", contents[2].Parts[0])
	}
	if fr.Name != "search_papers" {
		t.Errorf("function response name = %q, want search_papers", fr.Name)
	}
	// Array payloads are wrapped so the response stays a map.
	if _, ok := fr.Response["result"]; !ok {
		t.Errorf("expected wrapped result payload, got %v", fr.Response)
	}
}

// TestConvertMessages_UnknownRole checks that unsupported roles return an error.
func TestConvertMessages_UnknownRole(t *testing.T) {
	if _, err := convertMessages([]types.Message{{Role: "system", Content: "x"}}); err == nil {
		t.Fatal("expected error for system role, got nil")
	}
}

// TestResponsePayload covers object, array, and plain-string payloads.
func TestResponsePayload(t *testing.T) {
	obj := responsePayload(`{"title":"Paper"}`)
	if obj["title"] != "Paper" {
		t.Errorf("object payload = %v", obj)
	}
	arr := responsePayload(`["P1"]`)
	if _, ok := arr["result"]; !ok {
		t.Errorf("array payload = %v, want wrapped", arr)
	}
	plain := responsePayload("not json")
	if plain["result"] != "not json" {
		t.Errorf("plain payload = %v, want wrapped string", plain)
	}
}
