// Command orato is the speech-coaching backend server.
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

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/orato-app/orato/internal/achievement"
	"github.com/orato-app/orato/internal/analyzer"
	"github.com/orato-app/orato/internal/coach"
	"github.com/orato-app/orato/internal/config"
	"github.com/orato-app/orato/internal/health"
	"github.com/orato-app/orato/internal/observe"
	"github.com/orato-app/orato/internal/progress"
	"github.com/orato-app/orato/internal/resilience"
	"github.com/orato-app/orato/internal/server"
	"github.com/orato-app/orato/internal/store"
	"github.com/orato-app/orato/pkg/provider/embeddings"
	oaembed "github.com/orato-app/orato/pkg/provider/embeddings/openai"
	"github.com/orato-app/orato/pkg/provider/llm"
	"github.com/orato-app/orato/pkg/provider/llm/anyllm"
	oallm "github.com/orato-app/orato/pkg/provider/llm/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const (
	defaultListenAddr = ":8080"

	// defaultEmbeddingDimensions matches text-embedding-3-small, the
	// assumed model when the config does not say otherwise.
	defaultEmbeddingDimensions = 1536
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	noWatch := flag.Bool("no-watch", false, "disable config hot reload")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "orato: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "orato: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("orato starting",
		"version", version,
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "orato",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, embedder, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if llmProvider != nil {
		// A tripped breaker routes submissions straight to the
		// deterministic analyzer instead of waiting out the timeout.
		llmProvider = resilience.Guard(llmProvider, resilience.CircuitBreakerConfig{
			Name: cfg.Providers.LLM.Name,
		})
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	st, closeStore, err := buildStore(ctx, cfg, embedder)
	if err != nil {
		slog.Error("failed to initialise store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Engine wiring ─────────────────────────────────────────────────────────
	var assist *analyzer.Assist
	if llmProvider != nil {
		assist, err = analyzer.NewAssist(llmProvider, analyzer.AssistConfig{
			Timeout:     cfg.Analysis.Timeout,
			Temperature: cfg.Analysis.Temperature,
			MaxTokens:   cfg.Analysis.MaxTokens,
		})
		if err != nil {
			slog.Error("failed to build analyzer", "err", err)
			return 1
		}
	}
	cascade := analyzer.NewCascade(assist)

	loc, err := cfg.Progress.Location()
	if err != nil {
		slog.Error("failed to resolve progress timezone", "timezone", cfg.Progress.Timezone, "err", err)
		return 1
	}
	tracker := progress.NewTracker(loc)

	opts := []coach.Option{coach.WithMetrics(metrics)}
	if embedder != nil {
		opts = append(opts, coach.WithEmbedder(embedder))
	}
	if cfg.Progress.WeeklyGoal > 0 {
		opts = append(opts, coach.WithWeeklyGoal(cfg.Progress.WeeklyGoal))
	}
	engine := coach.New(st, cascade, tracker, achievement.NewEngine(), opts...)

	// ── Health checks ─────────────────────────────────────────────────────────
	checkers := []health.Checker{health.StoreChecker(st)}
	if cfg.Providers.LLM.Name != "" {
		checkers = append(checkers, health.ProviderChecker("llm", llmProvider != nil))
	}
	if cfg.Providers.Embeddings.Name != "" {
		checkers = append(checkers, health.ProviderChecker("embeddings", embedder != nil))
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if !*noWatch {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				logLevel.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level updated", "level", d.NewLogLevel)
			}
			if d.AnalysisChanged || d.WeeklyGoalChanged {
				slog.Warn("analysis and progress settings require a restart to apply")
			}
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	srv := server.New(listenAddr, engine, health.New(checkers...), metrics)

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai uses the first-party SDK for full control over JSON-mode calls.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted backends share the any-llm pattern:
	// optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
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

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. Both are optional:
// a missing LLM provider leaves every analysis on the deterministic path, a
// missing embeddings provider disables similar-session recall.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, embeddings.Provider, error) {
	var llmProvider llm.Provider
	var embedder embeddings.Provider

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		llmProvider = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", p.ModelID())
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		embedder = p
		slog.Info("provider created", "kind", "embeddings", "name", name, "dimensions", p.Dimensions())
	}

	return llmProvider, embedder, nil
}

// buildStore selects the persistence backend from cfg.
func buildStore(ctx context.Context, cfg *config.Config, embedder embeddings.Provider) (store.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dims := cfg.Storage.EmbeddingDimensions
		if dims == 0 {
			if embedder != nil {
				dims = embedder.Dimensions()
			} else {
				dims = defaultEmbeddingDimensions
			}
		}
		pg, err := store.NewPostgres(ctx, cfg.Storage.DSN, dims)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("store ready", "driver", "postgres", "embedding_dimensions", dims)
		return pg, pg.Close, nil

	case config.StorageMemory, "":
		slog.Info("store ready", "driver", "memory")
		ms := store.NewMemStore()
		return ms, ms.Close, nil

	default:
		// Validate rejects unknown drivers before we get here.
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
