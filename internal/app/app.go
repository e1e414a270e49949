// Package app provides application initialization and dependency
// wiring. App is the container that holds the configured Genkit
// instance, the embedder, the corpus cache, and the chat pipeline,
// with embedded cleanup for everything it started.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/folioworks/folio/internal/chat"
	"github.com/folioworks/folio/internal/config"
	"github.com/folioworks/folio/internal/corpus"
)

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config

	// Core services. Genkit, Embedder, and Flow are nil when the model
	// credential was absent at startup; the HTTP server still runs and
	// the chat endpoint fails per request.
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Corpus   *corpus.Cache
	Pipeline *chat.Pipeline
	Flow     *chat.Flow

	// Lifecycle management
	cancel      context.CancelFunc
	otelCleanup func()
}

// ChatEnabled reports whether the model credential was present and the
// chat flow is live.
func (a *App) ChatEnabled() bool {
	return a.Flow != nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
