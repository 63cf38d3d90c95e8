// Command scribe enhances speech-to-text transcripts against a context store
// of known people, projects and terms, and files the results as notes.
//
//	scribe -config scribe.yaml [-answers answers.yaml] [-dry-run] transcript.txt...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/feedback"
	"github.com/MrWong99/scribe/internal/health"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/internal/routing"
	"github.com/MrWong99/scribe/internal/transcript"
	"github.com/MrWong99/scribe/internal/transcript/phonetic"
	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/scribe/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "scribe.yaml", "path to the YAML configuration file")
	answersPath := flag.String("answers", "", "YAML file of pre-recorded clarification answers (overrides enhance.answers_file)")
	dryRun := flag.Bool("dry-run", false, "enhance and route, but write no notes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: scribe [flags] transcript...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scribe: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		}
		return 1
	}
	if *answersPath != "" {
		cfg.Enhance.AnswersFile = *answersPath
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("scribe starting",
		"config", *configPath,
		"files", flag.NArg(),
		"llm", cfg.LLM.Name,
		"model", cfg.LLM.Model,
		"context_backend", cfg.Context.Backend,
		"dry_run", *dryRun,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry := observe.ProviderConfig{ServiceName: cfg.Telemetry.ServiceName}
	if path := cfg.Telemetry.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("failed to open trace file", "path", path, "err", err)
			return 1
		}
		defer f.Close()
		telemetry.TraceWriter = f
	}
	shutdownTelemetry, err := observe.InitProvider(ctx, telemetry)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	// ── LLM providers ─────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	provider, err := buildLLM(cfg.LLM, reg)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	// ── Context store ─────────────────────────────────────────────────────────
	store, storeReady, closeStore, err := openStore(ctx, cfg.Context)
	if err != nil {
		slog.Error("failed to open context store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Probes and metrics endpoint ───────────────────────────────────────────
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		probes := health.New(
			health.Check{Name: "llm", Probe: provider.Ready},
			health.Check{Name: "context_store", Probe: storeReady},
		)
		srv := serveMetrics(addr, probes)
		defer srv.Close()
	}

	// ── Clarifications ────────────────────────────────────────────────────────
	var handler clarify.Handler
	if path := cfg.Enhance.AnswersFile; path != "" {
		af, err := clarify.LoadAnswers(afero.NewOsFs(), path)
		if err != nil {
			slog.Error("failed to load answers", "err", err)
			return 1
		}
		handler = clarify.NewFileHandler(af)
		slog.Info("replaying recorded answers", "path", path, "answers", len(af.Answers))
	}

	b := &batch{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		provider: provider,
		store:    store,
		router: routing.NewPhraseRouter(store, cfg.Routing.DefaultDestination,
			routing.WithMinConfidence(cfg.Routing.MinConfidence)),
		handler: handler,
		writer:  transcript.NewWriter(afero.NewOsFs(), cfg.Output.Dir, cfg.Output.Frontmatter),
		dryRun:  *dryRun,
		out:     os.Stdout,
	}
	if path := cfg.Output.ReviewLog; path != "" {
		b.review = feedback.NewLog(afero.NewOsFs(), path)
	}
	if err := b.Run(ctx, flag.Args()); err != nil {
		slog.Error("batch failed", "err", err)
		return 1
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in LLM factories into reg.
// "openai" uses the native client; every other name goes through any-llm.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d, err := time.ParseDuration(optString(entry.Options, "timeout")); err == nil {
			opts = append(opts, openai.WithTimeout(d))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, providerName := range anyllm.Supported {
		if providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}
}

// buildLLM creates the primary provider and wraps it, with any fallbacks,
// in a circuit-breaking [resilience.LLMFallback].
func buildLLM(cfg config.LLMConfig, reg *config.Registry) (*resilience.LLMFallback, error) {
	primary, err := reg.CreateLLM(cfg.ProviderEntry)
	if err != nil {
		return nil, err
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Name, "model", cfg.Model)

	fb := resilience.NewLLMFallback(primary, cfg.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		},
	})
	for i, entry := range cfg.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("llm.fallbacks[%d]: %w", i, err)
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("fallback provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}
	return fb, nil
}

// ── Context store ─────────────────────────────────────────────────────────────

// openStore opens the configured backend and indexes it. The returned probe
// reports whether the backend is still reachable.
func openStore(ctx context.Context, cfg config.ContextConfig) (*entity.Index, func(context.Context) error, func(), error) {
	closeFn := func() {}
	ready := func(context.Context) error { return nil }
	var backend entity.Backend
	switch cfg.Backend {
	case config.BackendMemory:
		backend = entity.NewMemBackend()
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := entity.NewPostgresBackend(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		backend, closeFn, ready = pg, pool.Close, pool.Ping
	default:
		osFs := afero.NewOsFs()
		dir, err := entity.NewDirBackend(osFs, cfg.Dir)
		if err != nil {
			return nil, nil, nil, err
		}
		backend = dir
		ready = func(context.Context) error {
			ok, err := afero.DirExists(osFs, cfg.Dir)
			if err == nil && !ok {
				err = fmt.Errorf("context dir %q is gone", cfg.Dir)
			}
			return err
		}
	}

	var opts []entity.IndexOption
	if cfg.PhoneticThreshold >= 0 {
		var popts []phonetic.Option
		if cfg.PhoneticThreshold > 0 {
			popts = append(popts, phonetic.WithPhoneticThreshold(cfg.PhoneticThreshold))
		}
		opts = append(opts, entity.WithNameMatcher(phonetic.New(popts...)))
	}
	ix, err := entity.NewIndex(ctx, backend, opts...)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	slog.Info("context store loaded", "backend", cfg.Backend, "entities", ix.Len())
	return ix, ready, closeFn, nil
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func serveMetrics(addr string, probes *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	probes.Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(cfg config.LogConfig) *slog.Logger {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
