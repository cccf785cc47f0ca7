// Command scholar-mcp exposes the Scholar tool catalog over the Model Context
// Protocol. It speaks MCP on stdio, so any MCP-capable client can call
// search_papers and extract_info against the same paper store the HTTP server
// uses, and browse stored topics through papers:// resources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/scholar/internal/arxiv"
	"github.com/MrWong99/scholar/internal/config"
	"github.com/MrWong99/scholar/internal/paperstore"
	"github.com/MrWong99/scholar/internal/tools"
)

const defaultStoreDir = "papers"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (store and search sections only)")
	flag.Parse()

	// stdout carries the MCP protocol stream, so all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// A missing config file is fine here: the MCP server only needs the store
	// and search sections, and both have workable defaults.
	var storeCfg config.StoreConfig
	var searchCfg config.SearchConfig
	if cfg, err := config.Load(*configPath); err == nil {
		storeCfg = cfg.Store
		searchCfg = cfg.Search
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "scholar-mcp: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir := storeCfg.Dir
	if dir == "" {
		dir = defaultStoreDir
	}
	store, err := paperstore.NewFileStore(dir)
	if err != nil {
		slog.Error("failed to open paper store", "dir", dir, "err", err)
		return 1
	}

	var searchOpts []arxiv.Option
	if searchCfg.BaseURL != "" {
		searchOpts = append(searchOpts, arxiv.WithBaseURL(searchCfg.BaseURL))
	}
	if searchCfg.TimeoutSeconds > 0 {
		searchOpts = append(searchOpts, arxiv.WithTimeout(time.Duration(searchCfg.TimeoutSeconds)*time.Second))
	}
	searcher := arxiv.NewClient(searchOpts...)

	executor, err := tools.NewExecutor(store, searcher, tools.Catalog())
	if err != nil {
		slog.Error("failed to build tool executor", "err", err)
		return 1
	}

	server := newServer(executor, store)

	slog.Info("scholar-mcp serving on stdio", "store_dir", dir)
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server stopped", "err", err)
		return 1
	}
	return 0
}

// newServer builds the MCP server: one tool per catalog entry, a folders
// resource listing topic partitions, and a templated resource for the papers
// under one topic.
func newServer(executor *tools.Executor, store paperstore.Store) *mcpsdk.Server {
	server := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: "scholar-mcp", Version: "1.0.0"},
		nil,
	)

	for _, spec := range executor.Specs() {
		name := spec.Name
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: spec.Description,
			InputSchema: spec.JSONSchema(true),
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args := "{}"
			if len(req.Params.Arguments) > 0 {
				args = string(req.Params.Arguments)
			}
			result, err := executor.Execute(ctx, name, args)
			if err != nil {
				return nil, err
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Content}},
				IsError: result.IsError,
			}, nil
		})
	}

	server.AddResource(&mcpsdk.Resource{
		URI:         "papers://folders",
		Name:        "Stored topics",
		Description: "All topic partitions with stored paper metadata.",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		topics, err := store.Topics(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		return markdownResult(req.Params.URI, renderTopics(topics)), nil
	})

	server.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		URITemplate: "papers://{topic}",
		Name:        "Papers for a topic",
		Description: "Stored paper metadata for one topic partition, rendered as markdown.",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		topic := paperstore.NormalizeTopic(strings.TrimPrefix(req.Params.URI, "papers://"))
		records, err := store.Papers(ctx, topic)
		if err != nil {
			if errors.Is(err, paperstore.ErrNotFound) {
				return markdownResult(req.Params.URI, renderMissingTopic(topic)), nil
			}
			return nil, fmt.Errorf("list papers for %q: %w", topic, err)
		}
		return markdownResult(req.Params.URI, renderPapers(topic, records)), nil
	})

	return server
}

func markdownResult(uri, text string) *mcpsdk.ReadResourceResult {
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: text},
		},
	}
}

// renderTopics lists all topic partitions with the resource URI to read each.
func renderTopics(topics []string) string {
	var sb strings.Builder
	sb.WriteString("# Stored Topics\n\n")
	if len(topics) == 0 {
		sb.WriteString("No topics stored yet. Use the search_papers tool to populate the store.\n")
		return sb.String()
	}
	for _, t := range topics {
		fmt.Fprintf(&sb, "- %s (papers://%s)\n", t, t)
	}
	return sb.String()
}

// renderPapers renders one topic partition as a markdown document, one section
// per paper.
func renderPapers(topic string, records []paperstore.PaperRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Papers on %s\n\n", strings.ReplaceAll(topic, "_", " "))
	fmt.Fprintf(&sb, "Total papers: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&sb, "## %s\n", rec.Title)
		fmt.Fprintf(&sb, "- **Paper ID**: %s\n", rec.PaperID)
		fmt.Fprintf(&sb, "- **Authors**: %s\n", strings.Join(rec.Authors, ", "))
		if rec.Published != "" {
			fmt.Fprintf(&sb, "- **Published**: %s\n", rec.Published)
		}
		if rec.PDFURL != "" {
			fmt.Fprintf(&sb, "- **PDF**: [%s](%s)\n", rec.PDFURL, rec.PDFURL)
		}
		fmt.Fprintf(&sb, "\n%s\n\n---\n\n", summaryLine(rec.Summary))
	}
	return sb.String()
}

func renderMissingTopic(topic string) string {
	return fmt.Sprintf("# No papers found for topic: %s\n\nUse the search_papers tool to search for papers on this topic first.\n", topic)
}

// summaryLine collapses the summary's internal line breaks so each paper reads
// as one markdown paragraph.
func summaryLine(summary string) string {
	return strings.Join(strings.Fields(summary), " ")
}
