package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MrWong99/scholar/internal/arxiv"
	"github.com/MrWong99/scholar/internal/paperstore"
	"github.com/MrWong99/scholar/pkg/types"
)

// Error kinds carried in structured tool results. The model sees these in the
// result payload and can react in natural language; they never surface as Go
// errors to the orchestrator.
const (
	KindInvalidArguments  = "invalid_arguments"
	KindNotFound          = "not_found"
	KindSearchUnavailable = "search_unavailable"
	KindInternal          = "internal"
)

// Result is the serializable outcome of one tool invocation. Content is
// always valid JSON; when IsError is set it is a {"error", "kind"} object.
type Result struct {
	Content string
	IsError bool
}

// Searcher is the external search client used by search_papers.
// [arxiv.Client] is the production implementation.
type Searcher interface {
	Search(ctx context.Context, topic string, maxResults int) ([]arxiv.Paper, error)
}

// Executor resolves named tool invocations against the paper store and the
// search client. All tool-level failures are recovered into structured error
// results; the error return of [Executor.Execute] is reserved for context
// cancellation.
type Executor struct {
	store    paperstore.Store
	searcher Searcher
	catalog  []types.ToolSpec
	specs    map[string]types.ToolSpec
	schemas  map[string]*jsonschema.Schema
}

// NewExecutor creates an Executor for the given catalog, compiling each
// tool's argument schema once up front. Returns an error if any spec is
// invalid or its schema does not compile.
func NewExecutor(store paperstore.Store, searcher Searcher, specs []types.ToolSpec) (*Executor, error) {
	e := &Executor{
		store:    store,
		searcher: searcher,
		specs:    make(map[string]types.ToolSpec, len(specs)),
		schemas:  make(map[string]*jsonschema.Schema, len(specs)),
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("tools: %w", err)
		}
		if _, dup := e.specs[spec.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q in catalog", spec.Name)
		}
		raw, err := json.Marshal(spec.JSONSchema(true))
		if err != nil {
			return nil, fmt.Errorf("tools: marshal schema for %q: %w", spec.Name, err)
		}
		schema, err := jsonschema.CompileString(spec.Name+".json", string(raw))
		if err != nil {
			return nil, fmt.Errorf("tools: compile schema for %q: %w", spec.Name, err)
		}
		e.catalog = append(e.catalog, spec)
		e.specs[spec.Name] = spec
		e.schemas[spec.Name] = schema
	}
	return e, nil
}

// Specs returns the catalog this executor was built with, in catalog order.
// Primarily used by servers advertising the same catalog they execute.
func (e *Executor) Specs() []types.ToolSpec {
	return e.catalog
}

// Execute validates rawArgs against the named tool's schema, applies defaults
// for omitted optional parameters, and runs the operation. Every tool-level
// failure (unknown tool, bad arguments, missing record, search outage) comes
// back as a Result with IsError set, never as a Go error.
func (e *Executor) Execute(ctx context.Context, name, rawArgs string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, ok := e.specs[name]
	if !ok {
		return errorResult(KindInvalidArguments, fmt.Sprintf("unknown tool %q", name)), nil
	}

	args, res := e.parseArgs(spec, rawArgs)
	if res != nil {
		return res, nil
	}

	switch name {
	case SearchPapers:
		return e.searchPapers(ctx, args)
	case ExtractInfo:
		return e.extractInfo(ctx, args)
	default:
		return errorResult(KindInvalidArguments, fmt.Sprintf("unknown tool %q", name)), nil
	}
}

// parseArgs decodes and validates the raw argument JSON, then fills in spec
// defaults and coerces integer-typed values. A non-nil Result means
// validation failed.
func (e *Executor) parseArgs(spec types.ToolSpec, rawArgs string) (map[string]any, *Result) {
	if rawArgs == "" {
		rawArgs = "{}"
	}
	var decoded any
	if err := json.Unmarshal([]byte(rawArgs), &decoded); err != nil {
		return nil, errorResult(KindInvalidArguments, fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := e.schemas[spec.Name].Validate(decoded); err != nil {
		return nil, errorResult(KindInvalidArguments, err.Error())
	}

	args, ok := decoded.(map[string]any)
	if !ok {
		return nil, errorResult(KindInvalidArguments, "arguments must be a JSON object")
	}

	// Defaults survive dialects that cannot express them on the wire: the
	// executor substitutes them here regardless of what the backend saw.
	for _, p := range spec.Params {
		if _, present := args[p.Name]; !present && p.Default != nil {
			args[p.Name] = p.Default
		}
	}
	return args, nil
}

// intArg reads an integer argument, accepting the float64 that encoding/json
// produces for JSON numbers.
func intArg(args map[string]any, name string) (int, bool) {
	switch v := args[name].(type) {
	case int:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func stringArg(args map[string]any, name string) (string, bool) {
	s, ok := args[name].(string)
	return s, ok
}

func (e *Executor) searchPapers(ctx context.Context, args map[string]any) (*Result, error) {
	topic, ok := stringArg(args, "topic")
	if !ok {
		return errorResult(KindInvalidArguments, "topic must be a string"), nil
	}
	maxResults, ok := intArg(args, "max_results")
	if !ok {
		return errorResult(KindInvalidArguments, "max_results must be an integer"), nil
	}

	papers, err := e.searcher.Search(ctx, topic, maxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return errorResult(KindSearchUnavailable, fmt.Sprintf("search failed: %v", err)), nil
	}

	records := make([]paperstore.PaperRecord, 0, len(papers))
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		records = append(records, paperstore.PaperRecord{
			PaperID:   p.ID,
			Title:     p.Title,
			Authors:   p.Authors,
			Summary:   p.Summary,
			PDFURL:    p.PDFURL,
			Published: publishedString(p.Published),
		})
		ids = append(ids, p.ID)
	}

	if len(records) > 0 {
		if err := e.store.Upsert(ctx, topic, records); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return errorResult(KindInternal, fmt.Sprintf("failed to store results: %v", err)), nil
		}
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("tools: marshal paper ids: %w", err)
	}
	return &Result{Content: string(payload)}, nil
}

func (e *Executor) extractInfo(ctx context.Context, args map[string]any) (*Result, error) {
	paperID, ok := stringArg(args, "paper_id")
	if !ok {
		return errorResult(KindInvalidArguments, "paper_id must be a string"), nil
	}

	record, err := e.store.Find(ctx, paperID)
	if err != nil {
		if errors.Is(err, paperstore.ErrNotFound) {
			return errorResult(KindNotFound, fmt.Sprintf("no saved information for paper %q", paperID)), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return errorResult(KindInternal, fmt.Sprintf("failed to read store: %v", err)), nil
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("tools: marshal paper record: %w", err)
	}
	return &Result{Content: string(payload)}, nil
}

// publishedString renders the published timestamp as a date, matching the
// stored document format. Zero times render as an empty string.
func publishedString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// errorResult builds a structured {"error", "kind"} result.
func errorResult(kind, message string) *Result {
	payload, _ := json.Marshal(map[string]string{
		"error": message,
		"kind":  kind,
	})
	return &Result{Content: string(payload), IsError: true}
}
