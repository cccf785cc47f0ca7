package types

import (
	"reflect"
	"testing"
)

func validSpec() ToolSpec {
	return ToolSpec{
		Name:        "search_papers",
		Description: "Search for papers and store the results.",
		Params: []ToolParam{
			{Name: "topic", Type: "string", Description: "The topic to search for.", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum number of results.", Default: 5},
		},
	}
}

func TestToolSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ToolSpec)
		wantErr bool
	}{
		{"valid", func(s *ToolSpec) {}, false},
		{"empty name", func(s *ToolSpec) { s.Name = "" }, true},
		{"duplicate param", func(s *ToolSpec) {
			s.Params = append(s.Params, ToolParam{Name: "topic", Type: "string"})
		}, true},
		{"unknown type", func(s *ToolSpec) { s.Params[0].Type = "str" }, true},
		{"required with default", func(s *ToolSpec) { s.Params[0].Default = "physics" }, true},
		{"empty param name", func(s *ToolSpec) { s.Params[1].Name = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			err := spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequiredFields(t *testing.T) {
	spec := validSpec()
	got := spec.RequiredFields()
	want := []string{"topic"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredFields() = %v, want %v", got, want)
	}
}

func TestJSONSchemaIncludesDefaults(t *testing.T) {
	spec := validSpec()
	schema := spec.JSONSchema(true)

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("expected properties map")
	}
	mr, ok := props["max_results"].(map[string]any)
	if !ok {
		t.Fatal("expected max_results property")
	}
	if mr["default"] != 5 {
		t.Errorf("max_results default = %v, want 5", mr["default"])
	}
	if !reflect.DeepEqual(schema["required"], []string{"topic"}) {
		t.Errorf("required = %v, want [topic]", schema["required"])
	}
}

func TestJSONSchemaStripsDefaults(t *testing.T) {
	spec := validSpec()
	schema := spec.JSONSchema(false)

	props := schema["properties"].(map[string]any)
	mr := props["max_results"].(map[string]any)
	if _, ok := mr["default"]; ok {
		t.Error("expected default to be stripped from wire schema")
	}
	// Required list must be identical regardless of default handling.
	if !reflect.DeepEqual(schema["required"], []string{"topic"}) {
		t.Errorf("required = %v, want [topic]", schema["required"])
	}
}

// TestJSONSchemaDeterministic verifies that two renderings of the same spec
// are structurally identical.
func TestJSONSchemaDeterministic(t *testing.T) {
	spec := validSpec()
	a := spec.JSONSchema(true)
	b := spec.JSONSchema(true)
	if !reflect.DeepEqual(a, b) {
		t.Error("JSONSchema is not deterministic for identical input")
	}
}
