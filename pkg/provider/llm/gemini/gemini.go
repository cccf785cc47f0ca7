// Package gemini provides an LLM provider backed by the Google Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/types"
)

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// New constructs a new Gemini LLM Provider. Additional client options
// (e.g. option.WithEndpoint) may be supplied for tests.
func New(ctx context.Context, apiKey string, model string, opts ...option.ClientOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Close releases the underlying API client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// schemaTypes maps the canonical lowercase type tokens onto the Gemini
// schema's enumerated uppercase types.
var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// NormalizeTools projects the tool catalog into the Gemini function-calling
// dialect: one Tool carrying all function declarations, with enumerated
// uppercase type tokens. The genai schema cannot express parameter defaults,
// so they are dropped from the wire representation; the executor re-applies
// them when the model omits an optional argument. The projection is
// deterministic.
func NormalizeTools(specs []types.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		for _, param := range spec.Params {
			props[param.Name] = &genai.Schema{
				Type:        schemaTypes[param.Type],
				Description: param.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   spec.RequiredFields(),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.client.GenerativeModel(p.model)
	model.Tools = NormalizeTools(req.Tools)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.Temperature != 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("gemini: build contents: %w", err)
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: empty message history")
	}

	session := model.StartChat()
	session.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: empty candidates in response")
	}

	result := &llm.CompletionResponse{}
	if resp.UsageMetadata != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("gemini: marshal call arguments: %w", err)
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				// The Gemini wire format carries no call IDs; synthesize
				// stable ones so results can be correlated downstream.
				ID:        fmt.Sprintf("call_%d", len(result.ToolCalls)+1),
				Name:      v.Name,
				Arguments: string(args),
			})
		}
	}
	result.Content = text.String()
	return result, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

// modelCapabilities returns ModelCapabilities for known Gemini model names.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		ContextWindow:       1_048_576,
		MaxOutputTokens:     8_192,
	}
	if strings.Contains(strings.ToLower(model), "gemini-1.5-pro") {
		caps.ContextWindow = 2_097_152
	}
	return caps
}

// convertMessages converts the conversation history into genai contents.
// Gemini uses "user"/"model" roles; tool results travel as function-response
// parts correlated by function name rather than by call ID.
func convertMessages(messages []types.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "user":
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(m.Content)},
			})

		case "assistant":
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode call arguments for %q: %w", tc.Name, err)
					}
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		case "tool":
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     m.ToolName,
					Response: responsePayload(m.Content),
				}},
			})

		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return contents, nil
}

// responsePayload decodes a tool-result payload into the map shape the
// function-response part requires. Non-object payloads (arrays, strings) are
// wrapped under a "result" key.
func responsePayload(content string) map[string]any {
	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return map[string]any{"result": content}
	}
	if obj, ok := decoded.(map[string]any); ok {
		return obj
	}
	return map[string]any{"result": decoded}
}
