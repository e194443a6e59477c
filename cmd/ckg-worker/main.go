// Command ckg-worker runs the Analysis Worker pool: it loads
// process-wide configuration, wires the Graph Store, Relational Store,
// Job Queue, Parser Registry, Repository Fetcher, and LLM Client, then
// blocks running MAX_ANALYSIS_WORKERS goroutines until it receives
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/novaguard-ai/ckg-pipeline/internal/contextbuild"
	"github.com/novaguard-ai/ckg-pipeline/internal/fetch"
	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/llm"
	"github.com/novaguard-ai/ckg-pipeline/internal/obslog"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
	"github.com/novaguard-ai/ckg-pipeline/internal/queue"
	"github.com/novaguard-ai/ckg-pipeline/internal/store"
	"github.com/novaguard-ai/ckg-pipeline/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides defaults; environment variables override it)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	if err := run(*configPath, *debug); err != nil {
		slog.Error("ckg-worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	obsCfg := obslog.DefaultConfig(debug)
	if err := obslog.Initialize(obsCfg); err != nil {
		return err
	}
	defer obslog.Close()
	// Every pipeline package logs through slog.Default(); installing the
	// rotating handler here routes all of it into the log file as well.
	slog.SetDefault(obslog.Slog())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	graphStore, err := graphstore.NewNeo4jBackend(ctx, cfg.GraphStore.URI, cfg.GraphStore.Username, cfg.GraphStore.Password, cfg.GraphStore.Database, graphstore.DefaultBatchLimits())
	if err != nil {
		return err
	}
	defer graphStore.Close(context.Background())

	relStore, err := store.New(ctx, cfg.Storage, nil)
	if err != nil {
		return err
	}
	defer relStore.Close()

	jobQueue, err := queue.New(ctx, cfg.Queue, cfg.Storage)
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	registry := parser.NewRegistry(cfg.CKG.MaxFileSizeBytes)
	fetcher := fetch.NewFetcher()

	var prClient *fetch.PRClient
	if cfg.GitHub.Token != "" {
		prClient = fetch.NewPRClient(cfg.GitHub.Token)
	}

	llmClient := buildLLMClient(ctx, cfg)
	lease := worker.NewLease(cfg.Redis.Addr, cfg.Redis.Password)

	var embedder llm.Embedder
	if cfg.LLM.GeminiKey != "" {
		if e, err := llm.NewGeminiEmbedder(ctx, cfg.LLM.GeminiKey, cfg.LLM.EmbeddingModel); err == nil {
			embedder = e
		} else {
			slog.Warn("gemini embedder unavailable, ambiguous symbols fall back to first match", "error", err)
		}
	}

	limits := graphstore.DefaultBatchLimits()
	limits.MaxFiles = cfg.CKG.BatchSize

	pool := worker.NewPool(worker.Deps{
		Queue:           jobQueue,
		Store:           relStore,
		GraphStore:      graphStore,
		Registry:        registry,
		Fetcher:         fetcher,
		PRClient:        prClient,
		LLMClient:       llmClient,
		ContextBuilder:  contextbuild.NewBuilder(),
		Lease:           lease,
		Limits:          limits,
		Embedder:        embedder,
		AnalysisTimeout: cfg.AnalysisTimeout(),
	}, cfg.Worker.MaxAnalysisWorkers)

	slog.Info("ckg-worker starting", "workers", cfg.Worker.MaxAnalysisWorkers, "mode", cfg.Mode)
	pool.Run(ctx)
	slog.Info("ckg-worker shut down")
	return nil
}

// buildLLMClient wires only the providers whose credentials are present;
// a job selecting an unconfigured provider gets a clear error from
// llm.Client.Invoke rather than a nil-pointer panic.
func buildLLMClient(ctx context.Context, cfg *config.Config) *llm.Client {
	providers := map[llm.Provider]llm.Backend{}
	if cfg.LLM.LocalBaseURL != "" {
		providers[llm.ProviderLocal] = llm.NewLocalProvider(cfg.LLM.LocalBaseURL, cfg.LLM.OpenAIKey)
	}
	if cfg.LLM.OpenAIKey != "" {
		providers[llm.ProviderHostedA] = llm.NewHostedAProvider(cfg.LLM.OpenAIKey)
	}
	if cfg.LLM.AnthropicKey != "" {
		providers[llm.ProviderHostedB] = llm.NewHostedBProvider(cfg.LLM.AnthropicKey)
	}

	var limiter *llm.RateLimiter
	if cfg.Redis.Addr != "" {
		if l, err := llm.NewRateLimiter(cfg.Redis.Addr); err == nil {
			limiter = l
		} else {
			slog.Warn("llm rate limiter unavailable, continuing without one", "error", err)
		}
	}

	return llm.NewClient(providers, limiter)
}
