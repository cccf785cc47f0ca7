// Package anthropic provides an LLM provider backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ant "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/types"
)

// defaultMaxTokens is used when the request does not cap completion tokens;
// the Messages API requires an explicit value.
const defaultMaxTokens = 4096

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client ant.Client
	model  string
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Anthropic LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := ant.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// NormalizeTools projects the tool catalog into the Anthropic input_schema
// dialect. Type tokens stay lowercase and parameter defaults are kept, which
// this dialect can express. The projection is deterministic.
func NormalizeTools(specs []types.ToolSpec) []ant.ToolUnionParam {
	tools := make([]ant.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := spec.JSONSchema(true)
		tools = append(tools, ant.ToolUnionParam{
			OfTool: &ant.ToolParam{
				Name:        spec.Name,
				Description: ant.String(spec.Description),
				InputSchema: ant.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   spec.RequiredFields(),
				},
			},
		})
	}
	return tools
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	result := &llm.CompletionResponse{
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, cb := range msg.Content {
		switch block := cb.AsAny().(type) {
		case ant.TextBlock:
			text.WriteString(block.Text)
		case ant.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
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

// modelCapabilities returns ModelCapabilities for known Claude model names.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		ContextWindow:       200_000,
		MaxOutputTokens:     8_192,
	}

	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude-3-opus"):
		caps.MaxOutputTokens = 4_096
	case strings.Contains(lower, "claude-3-haiku"):
		caps.MaxOutputTokens = 4_096
	}
	return caps
}

// buildParams converts a CompletionRequest into Messages API params.
func (p *Provider) buildParams(req llm.CompletionRequest) (ant.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := ant.MessageNewParams{
		Model:     ant.Model(p.model),
		MaxTokens: int64(maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []ant.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != 0 {
		params.Temperature = ant.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = NormalizeTools(req.Tools)
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return ant.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, msg)
	}
	return params, nil
}

// convertMessage converts a types.Message to a Messages API message param.
// The Messages API has no dedicated system or tool role: system prompts go in
// the top-level system field, and tool results are user-role tool_result
// blocks.
func convertMessage(m types.Message) (ant.MessageParam, error) {
	switch m.Role {
	case "user":
		return ant.NewUserMessage(ant.NewTextBlock(m.Content)), nil

	case "assistant":
		var blocks []ant.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, ant.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, ant.ContentBlockParamUnion{
				OfToolUse: &ant.ToolUseBlockParam{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(tc.Arguments),
				},
			})
		}
		return ant.NewAssistantMessage(blocks...), nil

	case "tool":
		return ant.NewUserMessage(ant.ContentBlockParamUnion{
			OfToolResult: &ant.ToolResultBlockParam{
				ToolUseID: m.ToolCallID,
				IsError:   ant.Bool(m.IsError),
				Content: []ant.ToolResultBlockParamContentUnion{
					{OfText: &ant.TextBlockParam{Text: m.Content}},
				},
			},
		}), nil

	default:
		return ant.MessageParam{}, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
	}
}
