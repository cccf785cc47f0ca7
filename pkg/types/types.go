// Package types defines the shared types used across all Scholar packages.
//
// These types form the lingua franca between the LLM backends, the tool
// executor, the paper store, and the orchestrator. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import (
	"fmt"
	"sort"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this responds to.
	ToolCallID string

	// ToolName is set when Role is "tool". Some backends (Ollama, Gemini)
	// correlate tool results by function name rather than by call ID.
	ToolName string

	// IsError marks a tool-result message that carries a structured error
	// payload instead of a success payload.
	IsError bool
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call. Provider-assigned where
	// the wire format has one; synthesized by the backend otherwise.
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments object.
	Arguments string
}

// ToolSpec is the canonical, provider-agnostic description of a single tool:
// its name, what it does, and the parameters it accepts. It is the single
// source of truth for argument validation and for every backend's wire
// schema; backends project it into their own dialect, they never redefine it.
//
// A ToolSpec is immutable once defined. Parameter order is preserved.
type ToolSpec struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does, including its side effects.
	// This text is the only behavioural documentation the model ever sees.
	Description string

	// Params lists the tool's parameters in declaration order.
	Params []ToolParam
}

// ToolParam describes one parameter of a ToolSpec.
type ToolParam struct {
	// Name is the parameter name, unique within the tool.
	Name string

	// Type is the lowercase JSON-Schema type token: "string", "integer",
	// "number", "boolean", "array", or "object".
	Type string

	// Description explains the parameter to the model.
	Description string

	// Required marks the parameter as mandatory. Required parameters must
	// not carry a Default.
	Required bool

	// Default is the value substituted by the executor when an optional
	// parameter is omitted. Nil means no default.
	Default any
}

// paramTypes lists the accepted ToolParam.Type tokens.
var paramTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Validate checks the ToolSpec invariants: non-empty name, known parameter
// types, unique parameter names, and no default on a required parameter.
func (s ToolSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("toolspec: name is empty")
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("toolspec %s: parameter with empty name", s.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("toolspec %s: duplicate parameter %q", s.Name, p.Name)
		}
		seen[p.Name] = true
		if !paramTypes[p.Type] {
			return fmt.Errorf("toolspec %s: parameter %q has unknown type %q", s.Name, p.Name, p.Type)
		}
		if p.Required && p.Default != nil {
			return fmt.Errorf("toolspec %s: required parameter %q must not carry a default", s.Name, p.Name)
		}
	}
	return nil
}

// RequiredFields returns the names of all required parameters in declaration
// order. Every backend dialect derives its required-field list from this —
// the computation is identical regardless of backend.
func (s ToolSpec) RequiredFields() []string {
	var req []string
	for _, p := range s.Params {
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return req
}

// Param returns the parameter with the given name, if present.
func (s ToolSpec) Param(name string) (ToolParam, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ToolParam{}, false
}

// JSONSchema renders the canonical JSON-Schema object for this tool's
// parameters, using lowercase type tokens. When includeDefaults is false the
// "default" annotations are stripped — used for dialects whose schema format
// cannot express them; the executor still applies the ToolSpec defaults at
// call time, so default semantics survive the transport either way.
//
// The output is deterministic: identical specs yield structurally identical
// schemas on every call.
func (s ToolSpec) JSONSchema(includeDefaults bool) map[string]any {
	props := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if includeDefaults && p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.RequiredFields(); len(req) > 0 {
		schema["required"] = req
	}
	return schema
}

// SortSpecs sorts a slice of ToolSpecs by name in place. Useful where a
// stable advertisement order is needed independently of catalog order.
func SortSpecs(specs []ToolSpec) {
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool
}
