// Package chat implements the retrieval augmented answer pipeline
// behind the portfolio chat endpoint: embed the visitor's question,
// select the closest portfolio passages, and stream a grounded answer
// from the model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/folioworks/folio/internal/corpus"
	"github.com/folioworks/folio/internal/log"
	"github.com/folioworks/folio/internal/retrieval"
)

// Sentinel errors for pipeline failures. HTTP handlers use errors.Is
// to pick status codes and user-facing messages.
var (
	// ErrEmptyMessage indicates a blank or whitespace-only question.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmbeddingFailed indicates the question could not be embedded.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrGenerationFailed indicates the model call failed after
	// retrieval succeeded.
	ErrGenerationFailed = errors.New("generation failed")
)

// fallbackResponseMessage is returned when the model produces no
// usable text.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// Per-stage deadlines. Embedding is a single small request; generation
// streams and gets room to finish long answers.
const (
	embedTimeout    = 10 * time.Second
	generateTimeout = 2 * time.Minute
)

// StreamCallback receives model response chunks during streaming
// generation. Returning an error aborts the generation.
type StreamCallback = func(context.Context, *ai.ModelResponseChunk) error

// Result is the outcome of one pipeline execution.
type Result struct {
	// FinalText is the complete answer, also delivered incrementally
	// through the stream callback when one is set.
	FinalText string

	// Sources lists the portfolio documents that grounded the answer,
	// ordered by descending similarity. Empty when the fallback
	// context was used.
	Sources []retrieval.Source
}

// Options configures a Pipeline.
type Options struct {
	// ModelName is the bare model identifier, e.g. "gemini-2.5-flash".
	ModelName string

	// Temperature and MaxTokens are passed through to the model.
	Temperature float64
	MaxTokens   int

	// OwnerName and ContactEmail personalize the prompt.
	OwnerName    string
	ContactEmail string

	Logger log.Logger
}

// Pipeline answers portfolio questions grounded in the embedded
// corpus. Safe for concurrent use.
type Pipeline struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	cache    *corpus.Cache
	opts     Options
	logger   log.Logger
}

// NewPipeline creates a Pipeline over an initialized Genkit instance,
// a registered embedder, and the corpus cache.
func NewPipeline(g *genkit.Genkit, embedder ai.Embedder, cache *corpus.Cache, opts Options) (*Pipeline, error) {
	if g == nil {
		return nil, errors.New("genkit instance is nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	if cache == nil {
		return nil, errors.New("corpus cache is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Pipeline{
		g:        g,
		embedder: embedder,
		cache:    cache,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Execute runs the full pipeline for one question. When callback is
// non-nil, answer text is streamed through it chunk by chunk; the
// returned Result always carries the complete text and the sources.
func (p *Pipeline) Execute(ctx context.Context, message string, callback StreamCallback) (*Result, error) {
	prompt, sources, err := p.prepare(ctx, message)
	if err != nil {
		return nil, err
	}

	text, err := p.generate(ctx, prompt, callback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	return &Result{FinalText: text, Sources: sources}, nil
}

// prepare embeds the question and selects the grounding context,
// returning the assembled prompt and the matched sources.
func (p *Pipeline) prepare(ctx context.Context, message string) (string, []retrieval.Source, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil, ErrEmptyMessage
	}

	entries := p.cache.Snapshot()

	query, err := p.embedQuery(ctx, message)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	selection := retrieval.Select(query, entries)

	p.logger.Debug("context selected",
		"corpusSize", len(entries),
		"sources", len(selection.Sources),
	)

	prompt := BuildPrompt(p.opts.OwnerName, p.opts.ContactEmail, selection.Context, message)
	return prompt, selection.Sources, nil
}

// embedQuery embeds the question text with a bounded deadline.
func (p *Pipeline) embedQuery(ctx context.Context, message string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(message, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	return resp.Embeddings[0].Embedding, nil
}

// generate calls the model, streaming through callback when set.
// An empty model response degrades to the fallback message rather
// than an error.
func (p *Pipeline) generate(ctx context.Context, prompt string, callback StreamCallback) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithPrompt(prompt),
	}
	if p.opts.ModelName != "" {
		opts = append(opts, ai.WithModelName("googleai/"+p.opts.ModelName))
	}
	config := map[string]any{}
	if p.opts.Temperature > 0 {
		config["temperature"] = p.opts.Temperature
	}
	if p.opts.MaxTokens > 0 {
		config["maxOutputTokens"] = p.opts.MaxTokens
	}
	if len(config) > 0 {
		opts = append(opts, ai.WithConfig(config))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	resp, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		p.logger.Warn("model returned empty response")
		return fallbackResponseMessage, nil
	}
	return text, nil
}
