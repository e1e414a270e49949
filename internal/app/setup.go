package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/folioworks/folio/internal/chat"
	"github.com/folioworks/folio/internal/config"
	"github.com/folioworks/folio/internal/corpus"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup, call Close() to release.
//
// A missing GEMINI_API_KEY does not fail setup: the corpus cache and
// HTTP plumbing come up normally and App.Flow stays nil, so the site
// keeps serving while the chat endpoint reports its misconfiguration
// per request.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	a.Corpus = provideCorpus(cfg, logger)

	if !cfg.APIKeySet() {
		logger.Warn("GEMINI_API_KEY not set, chat disabled")
		_, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		return a, nil
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	pipeline, err := chat.NewPipeline(g, embedder, a.Corpus, chat.Options{
		ModelName:    cfg.ModelName,
		Temperature:  float64(cfg.Temperature),
		MaxTokens:    cfg.MaxTokens,
		OwnerName:    cfg.OwnerName,
		ContactEmail: cfg.ContactEmail,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat pipeline: %w", err)
	}
	a.Pipeline = pipeline
	a.Flow = chat.NewFlow(g, pipeline)

	// Set up lifecycle management
	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideCorpus loads the precomputed embeddings into the process-wide
// cache. A missing corpus degrades to an empty cache; the pipeline
// then answers from the fallback context.
func provideCorpus(cfg *config.Config, logger *slog.Logger) *corpus.Cache {
	path, ok := cfg.ResolveCorpusPath()
	if !ok {
		logger.Warn("no corpus file found, chat will use fallback context",
			"candidates", cfg.CorpusCandidates)
	}

	cache := corpus.NewCache(path, logger)
	logger.Info("corpus loaded", "path", path, "documents", cache.Len())
	return cache
}

// provideOtelShutdown sets up OTLP tracing before Genkit
// initialization so the TracerProvider is ready when flows register.
// Returns a no-op cleanup when no endpoint is configured.
//
// Traces are exported via OTLP HTTP to a local collector, which
// handles authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	ot := cfg.Otel
	if ot.Endpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is
	// called exactly once during startup before goroutines spawn.
	if ot.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", ot.ServiceName)
	}
	if ot.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+ot.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(ot.Endpoint),
		otlptracehttp.WithInsecure(), // Local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", ot.Endpoint,
		"service", ot.ServiceName,
		"environment", ot.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// plugin reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the Google AI
// plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
