// Package ollama provides an LLM provider backed by a local or remote Ollama
// instance via its native chat API.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	api "github.com/ollama/ollama/api"

	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/types"
)

// DefaultHost is the default Ollama server address.
const DefaultHost = "http://localhost:11434"

const defaultTimeout = 120 * time.Second

// Provider implements llm.Provider using the Ollama chat API.
type Provider struct {
	client *api.Client
	model  string
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	host    string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithHost overrides the default Ollama server address.
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithTimeout sets a per-request HTTP timeout. Local models can be slow to
// load, so the default is generous (120 s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Ollama LLM Provider.
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}

	cfg := &config{host: DefaultHost, timeout: defaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	u, err := url.Parse(cfg.host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", cfg.host, err)
	}

	client := api.NewClient(u, &http.Client{Timeout: cfg.timeout})
	return &Provider{client: client, model: model}, nil
}

// NormalizeTools projects the tool catalog into the Ollama typed-parameter
// dialect. The parameter struct has no default field, so defaults are dropped
// from the wire representation; the executor re-applies them when the model
// omits an optional argument. The projection is deterministic.
func NormalizeTools(specs []types.ToolSpec) api.Tools {
	tools := make(api.Tools, 0, len(specs))
	for _, spec := range specs {
		var tool api.Tool
		tool.Type = "function"
		tool.Function.Name = spec.Name
		tool.Function.Description = spec.Description
		tool.Function.Parameters.Type = "object"
		tool.Function.Parameters.Required = spec.RequiredFields()

		props := api.NewToolPropertiesMap()
		for _, param := range spec.Params {
			props.Set(param.Name, api.ToolProperty{
				Type:        api.PropertyType{param.Type},
				Description: param.Description,
			})
		}
		tool.Function.Parameters.Properties = props
		tools = append(tools, tool)
	}
	return tools
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	chatReq, err := p.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}

	var final api.ChatResponse
	err = p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: chat: %w", err)
	}

	result := &llm.CompletionResponse{
		Content: final.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     final.Metrics.PromptEvalCount,
			CompletionTokens: final.Metrics.EvalCount,
			TotalTokens:      final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		},
	}
	for _, tc := range final.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("ollama: marshal call arguments: %w", err)
		}
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			// The Ollama wire format carries no call IDs; synthesize stable
			// ones so results can be correlated downstream.
			ID:        fmt.Sprintf("call_%d", len(result.ToolCalls)+1),
			Name:      tc.Function.Name,
			Arguments: string(args),
		})
	}
	return result, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

// modelCapabilities returns conservative defaults for locally served models.
// Ollama exposes no static capability metadata, so the context window is the
// common num_ctx default rather than the model's theoretical maximum.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		ContextWindow:       8_192,
		MaxOutputTokens:     4_096,
	}
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "llama3.1") || strings.HasPrefix(lower, "qwen2.5") {
		caps.ContextWindow = 32_768
	}
	return caps
}

// buildRequest converts a CompletionRequest into a non-streaming chat
// request.
func (p *Provider) buildRequest(req llm.CompletionRequest) (*api.ChatRequest, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:  p.model,
		Stream: &stream,
		Tools:  NormalizeTools(req.Tools),
	}

	options := map[string]any{}
	if req.Temperature != 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		chatReq.Options = options
	}

	if req.SystemPrompt != "" {
		chatReq.Messages = append(chatReq.Messages, api.Message{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return nil, err
		}
		chatReq.Messages = append(chatReq.Messages, msg)
	}
	return chatReq, nil
}

// convertMessage converts a types.Message to an Ollama chat message. Tool
// results are correlated by function name; Ollama has no call IDs.
func convertMessage(m types.Message) (api.Message, error) {
	switch m.Role {
	case "system", "user":
		return api.Message{Role: m.Role, Content: m.Content}, nil

	case "assistant":
		msg := api.Message{Role: "assistant", Content: m.Content}
		for i, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					return api.Message{}, fmt.Errorf("decode call arguments for %q: %w", tc.Name, err)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Index:     i,
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		return msg, nil

	case "tool":
		return api.Message{Role: "tool", Content: m.Content, ToolName: m.ToolName}, nil

	default:
		return api.Message{}, fmt.Errorf("unsupported message role %q", m.Role)
	}
}
