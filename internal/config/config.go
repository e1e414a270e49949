// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.folio/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model, temperature, max tokens, embedder model
//   - Corpus: candidate paths for the precomputed embedding file
//   - Content: markdown source directory served by /api/chatbot-sources
//   - Embed job: output paths and pacing for the offline precompute run
//   - Server: listen address, CORS, proxy trust, rate limiting
//   - Observability: optional OTLP trace export
//
// GEMINI_API_KEY is read directly from the environment by the Genkit
// googlegenai plugin, never stored here. Its absence does not fail
// Validate(): the serve command runs without it and the chat endpoint
// answers 500 per request, while the embed command requires it up
// front via RequireAPIKey().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the generation credential is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidContentDir indicates the markdown content directory is invalid.
	ErrInvalidContentDir = errors.New("invalid content directory")

	// ErrInvalidEmbedDelay indicates the embed job pacing delay is out of range.
	ErrInvalidEmbedDelay = errors.New("invalid embed delay")

	// ErrInvalidCacheTTL indicates the sources cache interval is out of range.
	ErrInvalidCacheTTL = errors.New("invalid sources cache TTL")

	// ErrNoCorpusCandidates indicates no corpus candidate paths are configured.
	ErrNoCorpusCandidates = errors.New("no corpus candidate paths")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; both the precompute job and the query path
	// must use the same model so corpus and query vectors stay
	// dimensionally compatible.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default generation model for chat answers.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:3400"
)

// OtelConfig holds optional OTLP trace export settings.
// Traces are exported to a local collector over OTLP HTTP; an empty
// Endpoint disables export entirely.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// No secret material lives in this struct: the only credential
// (GEMINI_API_KEY) stays in the environment.
type Config struct {
	// AI configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`

	// Site owner persona used by the prompt assembler
	OwnerName    string `mapstructure:"owner_name" json:"owner_name"`
	ContactEmail string `mapstructure:"contact_email" json:"contact_email"`

	// Corpus configuration.
	// CorpusPath, when set, wins outright. Otherwise CorpusCandidates
	// are probed in order at startup; the first existing file is used.
	CorpusPath       string   `mapstructure:"corpus_path" json:"corpus_path"`
	CorpusCandidates []string `mapstructure:"corpus_candidates" json:"corpus_candidates"`

	// Markdown content served by /api/chatbot-sources and consumed by
	// the embed job.
	ContentDir string `mapstructure:"content_dir" json:"content_dir"`

	// Embed job configuration
	EmbedOutputPath   string `mapstructure:"embed_output_path" json:"embed_output_path"`
	EmbedManifestPath string `mapstructure:"embed_manifest_path" json:"embed_manifest_path"`
	EmbedDelayMs      int    `mapstructure:"embed_delay_ms" json:"embed_delay_ms"`

	// Server configuration
	Addr                string   `mapstructure:"addr" json:"addr"`
	CORSOrigins         []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy          bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst           int      `mapstructure:"rate_burst" json:"rate_burst"`
	SourcesCacheSeconds int      `mapstructure:"sources_cache_seconds" json:"sources_cache_seconds"`

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".folio")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 1024)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	// Persona defaults
	viper.SetDefault("owner_name", "the site owner")
	viper.SetDefault("contact_email", "")

	// Corpus candidates mirror the deploy layouts the site has shipped
	// with; resolution happens once at startup, not per request.
	viper.SetDefault("corpus_candidates", []string{
		"data/embeddings.json",
		"public/data/embeddings.json",
		"static/data/embeddings.json",
	})

	// Content defaults
	viper.SetDefault("content_dir", "content")

	// Embed job defaults
	viper.SetDefault("embed_output_path", "data/embeddings.json")
	viper.SetDefault("embed_manifest_path", "data/embeddings-manifest.json")
	viper.SetDefault("embed_delay_ms", 350)

	// Server defaults
	viper.SetDefault("addr", DefaultAddr)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("sources_cache_seconds", 300)

	// Otel defaults (empty endpoint = tracing disabled)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.service_name", "folio")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is deliberately not bound: Genkit reads it directly,
// and APIKeySet()/RequireAPIKey() check its presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "FOLIO_ADDR")
	mustBind("model_name", "FOLIO_MODEL_NAME")
	mustBind("embedder_model", "FOLIO_EMBEDDER_MODEL")
	mustBind("corpus_path", "FOLIO_CORPUS_PATH")
	mustBind("content_dir", "FOLIO_CONTENT_DIR")
	mustBind("cors_origins", "FOLIO_CORS_ORIGINS")
	mustBind("trust_proxy", "FOLIO_TRUST_PROXY")
	mustBind("rate_burst", "FOLIO_RATE_BURST")
	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// APIKeySet reports whether the generation credential is configured.
// The chat handler checks this before any streaming begins.
func (c *Config) APIKeySet() bool {
	return os.Getenv("GEMINI_API_KEY") != ""
}

// RequireAPIKey returns a clear error when the generation credential
// is absent. The embed command fails fast on this instead of
// surfacing an opaque downstream failure.
func (c *Config) RequireAPIKey() error {
	if !c.APIKeySet() {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}
	return nil
}

// ResolveCorpusPath resolves the corpus file location once at startup.
// CorpusPath wins when set even if the file does not exist yet (it may
// appear after an embed run). Otherwise the first existing candidate
// is returned. ok is false when nothing resolves; the caller starts
// with an empty corpus rather than failing.
func (c *Config) ResolveCorpusPath() (path string, ok bool) {
	if c.CorpusPath != "" {
		return c.CorpusPath, true
	}
	for _, candidate := range c.CorpusCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash".
func (c *Config) FullModelName() string {
	return "googleai/" + c.ModelName
}
