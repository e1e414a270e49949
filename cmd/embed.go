package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/folioworks/folio/internal/app"
	"github.com/folioworks/folio/internal/config"
	"github.com/folioworks/folio/internal/indexer"
	"github.com/folioworks/folio/internal/log"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Precompute the embeddings corpus from the content directory",
	Long: `Embed scans the markdown content directory, embeds every document
through the configured Gemini embedder, and writes the corpus JSON the
chat endpoint retrieves from, plus a build manifest.

Requires GEMINI_API_KEY. Individual document failures are skipped and
reported; the output is written atomically only when at least one
document embeds successfully.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEmbed(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// The serve command tolerates a missing credential; a batch embed
	// run without one can only fail, so surface it before any work.
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})
	slog.SetDefault(logger)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	job, err := indexer.NewJob(a.Embedder, indexer.Options{
		ContentDir:   cfg.ContentDir,
		OutputPath:   cfg.EmbedOutputPath,
		ManifestPath: cfg.EmbedManifestPath,
		Model:        cfg.EmbedderModel,
		Delay:        time.Duration(cfg.EmbedDelayMs) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating embed job: %w", err)
	}

	logger.Info("embedding content",
		"dir", cfg.ContentDir,
		"model", cfg.EmbedderModel,
		"delay_ms", cfg.EmbedDelayMs,
	)

	result, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("embed run: %w", err)
	}

	fmt.Printf("Embedded %d documents (%d skipped) in %s\n",
		result.DocumentsEmbedded, result.DocumentsSkipped, result.Duration.Round(time.Millisecond))
	fmt.Printf("Dimension: %d\n", result.Dimension)
	fmt.Printf("Corpus:    %s\n", result.OutputPath)
	fmt.Printf("Manifest:  %s\n", result.ManifestPath)
	return nil
}
