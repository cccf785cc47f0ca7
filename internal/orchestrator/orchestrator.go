// Package orchestrator runs the tool-calling turn loop that turns a user
// query into a final text answer.
//
// Each turn sends the accumulated conversation to the LLM backend. When the
// model replies with tool calls, the orchestrator executes them in the order
// the model emitted them, appends one tool-result message per call (tagged
// with the originating call ID), and loops. When the model replies with plain
// text, that text is the answer. The loop is bounded by MaxTurns so a model
// that keeps requesting tools cannot spin forever.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/scholar/internal/observe"
	"github.com/MrWong99/scholar/internal/tools"
	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/types"
)

// DefaultMaxTurns bounds the turn loop when Config.MaxTurns is zero.
const DefaultMaxTurns = 10

// ToolRunner executes tool calls against the catalog. *tools.Executor is the
// production implementation.
type ToolRunner interface {
	// Specs returns the tool catalog advertised to the model.
	Specs() []types.ToolSpec

	// Execute runs the named tool with JSON-encoded arguments. Tool-level
	// failures are reported inside the Result; a non-nil error means the
	// execution machinery itself failed (e.g. cancelled context).
	Execute(ctx context.Context, name, rawArgs string) (*tools.Result, error)
}

// Compile-time check that the production executor satisfies [ToolRunner].
var _ ToolRunner = (*tools.Executor)(nil)

// Config assembles an [Orchestrator].
type Config struct {
	// Provider is the LLM backend. Required.
	Provider llm.Provider

	// ProviderName labels metrics and log lines, e.g. "openai". Optional.
	ProviderName string

	// Executor runs the tools the model requests. Required.
	Executor ToolRunner

	// SystemPrompt is injected into every completion request.
	SystemPrompt string

	// MaxTurns bounds the number of LLM round-trips per query.
	// Zero means [DefaultMaxTurns].
	MaxTurns int

	// CallTimeout bounds each individual completion call. Zero disables the
	// per-call timeout; the caller's context still applies.
	CallTimeout time.Duration

	// Temperature and MaxTokens are passed through to the backend.
	Temperature float64
	MaxTokens   int

	// Metrics receives turn-loop instrumentation. Optional.
	Metrics *observe.Metrics
}

// Orchestrator drives the tool-calling loop for one configured backend.
// All exported methods are safe for concurrent use; each query keeps its own
// conversation state on the stack.
type Orchestrator struct {
	provider     llm.Provider
	providerName string
	executor     ToolRunner
	systemPrompt string
	maxTurns     int
	callTimeout  time.Duration
	temperature  float64
	maxTokens    int
	metrics      *observe.Metrics
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("orchestrator: Provider must not be nil")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("orchestrator: Executor must not be nil")
	}
	if cfg.MaxTurns < 0 {
		return nil, fmt.Errorf("orchestrator: MaxTurns must not be negative")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns == 0 {
		maxTurns = DefaultMaxTurns
	}
	providerName := cfg.ProviderName
	if providerName == "" {
		providerName = "unknown"
	}

	return &Orchestrator{
		provider:     cfg.Provider,
		providerName: providerName,
		executor:     cfg.Executor,
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     maxTurns,
		callTimeout:  cfg.CallTimeout,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		metrics:      cfg.Metrics,
	}, nil
}

// Answer runs the turn loop for query and returns the model's final text
// reply.
//
// Terminal failures: [ErrMaxTurnsExceeded] when the turn bound is hit,
// a [*BackendError] when the backend times out or misbehaves, and the
// context's error when ctx is cancelled.
func (o *Orchestrator) Answer(ctx context.Context, query string) (string, error) {
	return o.AnswerObserved(ctx, query, nil)
}

// AnswerObserved is like [Answer] but additionally delivers tool-call and
// tool-result events to obs as the loop progresses. obs may be nil.
func (o *Orchestrator) AnswerObserved(ctx context.Context, query string, obs Observer) (string, error) {
	ctx, span := observe.StartSpan(ctx, "orchestrator.Answer")
	defer span.End()

	if o.metrics != nil {
		o.metrics.ActiveQueries.Add(ctx, 1)
		defer o.metrics.ActiveQueries.Add(ctx, -1)
	}

	messages := []types.Message{{Role: "user", Content: query}}
	specs := o.executor.Specs()

	for turn := 1; turn <= o.maxTurns; turn++ {
		resp, err := o.complete(ctx, messages, specs)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				// A reply with neither text nor tool calls gives the loop
				// nothing to act on.
				err := &BackendError{Kind: KindProtocol, Err: errors.New("completion carried neither text nor tool calls")}
				o.recordProviderError(ctx, KindProtocol)
				return "", err
			}
			o.recordTurns(ctx, turn)
			observe.Logger(ctx).Debug("query answered",
				"provider", o.providerName, "turns", turn)
			return resp.Content, nil
		}

		// Echo the assistant turn, then execute every requested call in the
		// order the model emitted it and append one result message per call.
		messages = append(messages, types.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, err := o.runTool(ctx, call, obs)
			if err != nil {
				return "", err
			}
			messages = append(messages, types.Message{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				IsError:    result.IsError,
			})
		}
	}

	o.recordTurns(ctx, o.maxTurns)
	return "", ErrMaxTurnsExceeded
}

// complete performs one LLM round-trip with the per-call timeout applied and
// classifies failures into the backend error taxonomy.
func (o *Orchestrator) complete(ctx context.Context, messages []types.Message, specs []types.ToolSpec) (*llm.CompletionResponse, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.provider.Complete(callCtx, llm.CompletionRequest{
		Messages:     messages,
		Tools:        specs,
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
		SystemPrompt: o.systemPrompt,
	})
	if o.metrics != nil {
		o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		if o.metrics != nil {
			o.metrics.RecordProviderRequest(ctx, o.providerName, "ok")
		}
		return resp, nil

	case ctx.Err() != nil:
		// The caller gave up; report that rather than a backend failure.
		return nil, ctx.Err()

	case errors.Is(err, context.DeadlineExceeded):
		o.recordProviderError(ctx, KindTimeout)
		return nil, &BackendError{Kind: KindTimeout, Err: err}

	default:
		o.recordProviderError(ctx, KindProtocol)
		return nil, &BackendError{Kind: KindProtocol, Err: err}
	}
}

// runTool executes one requested call, notifies the observer, and records
// tool metrics. Only execution-machinery failures surface as errors.
func (o *Orchestrator) runTool(ctx context.Context, call types.ToolCall, obs Observer) (*tools.Result, error) {
	if obs != nil {
		obs.OnToolCall(call)
	}

	start := time.Now()
	result, err := o.executor.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: execute %s: %w", call.Name, err)
	}

	if o.metrics != nil {
		o.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if result.IsError {
			status = "error"
		}
		o.metrics.RecordToolCall(ctx, call.Name, status)
	}
	observe.Logger(ctx).Debug("tool executed",
		"tool", call.Name, "call_id", call.ID, "is_error", result.IsError)

	if obs != nil {
		obs.OnToolResult(call, *result)
	}
	return result, nil
}

func (o *Orchestrator) recordTurns(ctx context.Context, turns int) {
	if o.metrics != nil {
		o.metrics.TurnsPerQuery.Record(ctx, int64(turns))
	}
}

func (o *Orchestrator) recordProviderError(ctx context.Context, kind string) {
	if o.metrics != nil {
		o.metrics.RecordProviderRequest(ctx, o.providerName, "error")
		o.metrics.RecordProviderError(ctx, o.providerName, kind)
	}
}
