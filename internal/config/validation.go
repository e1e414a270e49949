package config

import "fmt"

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// The generation credential is intentionally not validated here: serve
// mode runs without it (the chat endpoint degrades to a per-request
// 500) and the embed command calls RequireAPIKey() itself.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	// Reference: Gemini API documentation
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 65536 (output cap, not context window)
	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65,536, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.ContentDir == "" {
		return fmt.Errorf("%w: content_dir cannot be empty", ErrInvalidContentDir)
	}

	// The corpus must be locatable somehow: either an explicit path or
	// at least one candidate to probe.
	if c.CorpusPath == "" && len(c.CorpusCandidates) == 0 {
		return fmt.Errorf("%w: set corpus_path or corpus_candidates", ErrNoCorpusCandidates)
	}

	// Pacing between embedding calls is a fixed delay (50ms–10s).
	// Zero would hammer the embedding API; anything above 10s makes
	// full regeneration runs impractically slow.
	if c.EmbedDelayMs < 50 || c.EmbedDelayMs > 10000 {
		return fmt.Errorf("%w: must be between 50 and 10,000 ms, got %d", ErrInvalidEmbedDelay, c.EmbedDelayMs)
	}

	// Sources listing is cacheable for a fixed interval (spec ties it
	// to the corpus being static between deploys).
	if c.SourcesCacheSeconds < 0 || c.SourcesCacheSeconds > 86400 {
		return fmt.Errorf("%w: must be between 0 and 86,400 seconds, got %d", ErrInvalidCacheTTL, c.SourcesCacheSeconds)
	}

	return nil
}
