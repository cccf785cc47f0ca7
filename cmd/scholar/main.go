// Command scholar is the main entry point for the Scholar research assistant
// server. With -query it answers a single question on the command line and
// exits; without it, it serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"google.golang.org/api/option"

	"github.com/MrWong99/scholar/internal/arxiv"
	"github.com/MrWong99/scholar/internal/config"
	"github.com/MrWong99/scholar/internal/observe"
	"github.com/MrWong99/scholar/internal/orchestrator"
	"github.com/MrWong99/scholar/internal/paperstore"
	"github.com/MrWong99/scholar/internal/resilience"
	"github.com/MrWong99/scholar/internal/server"
	"github.com/MrWong99/scholar/internal/tools"
	"github.com/MrWong99/scholar/pkg/provider/llm"
	"github.com/MrWong99/scholar/pkg/provider/llm/anthropic"
	"github.com/MrWong99/scholar/pkg/provider/llm/anyllm"
	"github.com/MrWong99/scholar/pkg/provider/llm/gemini"
	"github.com/MrWong99/scholar/pkg/provider/llm/ollama"
	"github.com/MrWong99/scholar/pkg/provider/llm/openai"
)

// defaultStoreDir is used when store.dir is not configured.
const defaultStoreDir = "papers"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	query := flag.String("query", "", "answer a single question and exit instead of serving")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scholar: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scholar: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scholar starting",
		"config", *configPath,
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "scholar"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── LLM provider ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	provider, err := buildProvider(reg, cfg.Provider)
	if err != nil {
		slog.Error("failed to create LLM provider", "name", cfg.Provider.Name, "err", err)
		return 1
	}
	slog.Info("provider created",
		"name", cfg.Provider.Name,
		"model", cfg.Provider.Model,
		"fallbacks", len(cfg.Provider.Fallbacks),
	)

	// ── Paper store ───────────────────────────────────────────────────────────
	store, cleanup, err := buildStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to initialise paper store", "err", err)
		return 1
	}
	defer cleanup()

	// ── Search client + tool executor ─────────────────────────────────────────
	var searchOpts []arxiv.Option
	if cfg.Search.BaseURL != "" {
		searchOpts = append(searchOpts, arxiv.WithBaseURL(cfg.Search.BaseURL))
	}
	if cfg.Search.TimeoutSeconds > 0 {
		searchOpts = append(searchOpts, arxiv.WithTimeout(time.Duration(cfg.Search.TimeoutSeconds)*time.Second))
	}
	searcher := resilience.NewGuardedSearcher(arxiv.NewClient(searchOpts...), resilience.CircuitBreakerConfig{})

	executor, err := tools.NewExecutor(store, searcher, tools.Catalog())
	if err != nil {
		slog.Error("failed to build tool executor", "err", err)
		return 1
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch, err := orchestrator.New(orchestrator.Config{
		Provider:     provider,
		ProviderName: cfg.Provider.Name,
		Executor:     executor,
		SystemPrompt: cfg.Chat.SystemPrompt,
		MaxTurns:     cfg.Chat.MaxTurns,
		CallTimeout:  time.Duration(cfg.Chat.CallTimeoutSeconds) * time.Second,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		Metrics:      metrics,
	})
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	// ── One-shot query mode ───────────────────────────────────────────────────
	if *query != "" {
		answer, err := orch.Answer(ctx, *query)
		if err != nil {
			slog.Error("query failed", "err", err)
			return 1
		}
		fmt.Println(answer)
		return 0
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Only the log level is applied live; anything else gets a restart hint.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.RequiresRestart() {
			slog.Warn("config changes require a restart to take effect")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{
		Addr:     cfg.Server.ListenAddr,
		Answerer: orch,
		Store:    store,
		Metrics:  metrics,
	}
	if cfg.Server.TLS != nil {
		srvCfg.TLSCertFile = cfg.Server.TLS.CertFile
		srvCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProvider creates the configured backend. When fallback entries are
// present, the result is a failover group with a circuit breaker per backend.
func buildProvider(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		provider, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, provider)
	}
	return group, nil
}

// registerBuiltinProviders wires all built-in LLM provider factories into reg.
// The first four use their native SDK backends; the rest go through the
// any-llm-go catch-all.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("anthropic", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anthropic.Option
		if entry.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(entry.BaseURL))
		}
		return anthropic.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []option.ClientOption
		if entry.BaseURL != "" {
			opts = append(opts, option.WithEndpoint(entry.BaseURL))
		}
		return gemini.New(ctx, entry.APIKey, entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []ollama.Option
		if entry.BaseURL != "" {
			opts = append(opts, ollama.WithHost(entry.BaseURL))
		}
		return ollama.New(entry.Model, opts...)
	})

	for _, providerName := range []string{"deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	for _, name := range reg.Names() {
		slog.Debug("registered provider", "name", name)
	}
}

// buildStore creates the configured paper store. The returned cleanup closes
// any underlying connections and is safe to call on all paths.
func buildStore(ctx context.Context, cfg config.StoreConfig) (paperstore.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store := paperstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate paper store: %w", err)
		}
		slog.Info("paper store ready", "backend", "postgres")
		return store, pool.Close, nil
	}

	dir := cfg.Dir
	if dir == "" {
		dir = defaultStoreDir
	}
	store, err := paperstore.NewFileStore(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open file store %q: %w", dir, err)
	}
	slog.Info("paper store ready", "backend", "file", "dir", dir)
	return store, func() {}, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar allows the config
// watcher to adjust verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
