// Package indexer builds the precomputed embeddings corpus the chat
// pipeline retrieves from at runtime. It scans the markdown content
// directory, embeds each document, and atomically writes the corpus
// JSON plus a build manifest.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"github.com/folioworks/folio/internal/content"
	"github.com/folioworks/folio/internal/corpus"
	"github.com/folioworks/folio/internal/log"
)

// ErrLocked indicates another embed run holds the output lock.
var ErrLocked = errors.New("another embed run is in progress")

// perDocTimeout bounds each embedding call so one stuck request
// cannot hang the whole run.
const perDocTimeout = 30 * time.Second

// Options configures a Job.
type Options struct {
	// ContentDir is the markdown source directory.
	ContentDir string

	// OutputPath is where the corpus JSON is written.
	OutputPath string

	// ManifestPath is where the build manifest is written. Empty
	// defaults to OutputPath with a .manifest.json suffix.
	ManifestPath string

	// Model is recorded in the manifest.
	Model string

	// Delay is the fixed pacing between embedding calls, keeping the
	// run under the embedding API's rate limits.
	Delay time.Duration

	Logger log.Logger
}

// Result summarizes one embed run.
type Result struct {
	DocumentsEmbedded int
	DocumentsSkipped  int
	Dimension         int
	TotalBytes        int64
	Duration          time.Duration
	OutputPath        string
	ManifestPath      string
}

// Job embeds the content directory into a corpus file.
type Job struct {
	embedder ai.Embedder
	opts     Options
	logger   log.Logger
}

// NewJob creates an embed job. The embedder must already be
// registered with a configured Genkit instance.
func NewJob(embedder ai.Embedder, opts Options) (*Job, error) {
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	if opts.ContentDir == "" {
		return nil, errors.New("content dir is empty")
	}
	if opts.OutputPath == "" {
		return nil, errors.New("output path is empty")
	}
	if opts.ManifestPath == "" {
		opts.ManifestPath = manifestPathFor(opts.OutputPath)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	return &Job{embedder: embedder, opts: opts, logger: opts.Logger}, nil
}

// Run scans, embeds, and writes the corpus. Individual document
// failures are skipped and counted; the run fails only when nothing
// can be embedded at all or the output cannot be written. Reruns over
// unchanged content produce identical entries apart from embedding
// jitter, so the job is safe to schedule repeatedly.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	lock, err := j.acquireLock()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Unlock()
	}()

	scanner := content.NewScanner(j.opts.ContentDir, 0, j.logger)
	docs, err := scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning content: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no markdown documents under %s", j.opts.ContentDir)
	}

	limiter := rate.NewLimiter(rate.Every(j.opts.Delay), 1)

	var (
		entries    []corpus.Entry
		skipped    int
		dimension  int
		totalBytes int64
		categories = make(map[string]int)
	)

	for _, doc := range docs {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		embedding, err := j.embedDocument(ctx, doc)
		if err != nil {
			j.logger.Warn("skipping document", "path", doc.Path, "error", err)
			skipped++
			continue
		}

		if dimension == 0 {
			dimension = len(embedding)
		} else if len(embedding) != dimension {
			j.logger.Warn("skipping document with inconsistent dimension",
				"path", doc.Path, "got", len(embedding), "want", dimension)
			skipped++
			continue
		}

		entries = append(entries, corpus.Entry{
			ID:      docID(doc.Path),
			Content: doc.Content,
			Metadata: corpus.Metadata{
				Title:       doc.Title,
				Description: doc.Description,
				Tags:        doc.Tags,
				Date:        doc.Date,
				FilePath:    doc.Path,
				Category:    doc.Category,
			},
			Embedding: embedding,
		})
		categories[doc.Category]++
		totalBytes += doc.SizeBytes

		j.logger.Debug("embedded document", "path", doc.Path, "dimension", len(embedding))
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("all %d documents failed to embed", len(docs))
	}

	if err := j.writeCorpus(entries); err != nil {
		return nil, err
	}

	manifest := corpus.Manifest{
		GeneratedAt:   time.Now().UTC(),
		Model:         j.opts.Model,
		Dimension:     dimension,
		DocumentCount: len(entries),
		SkippedCount:  skipped,
		Categories:    categories,
		TotalBytes:    totalBytes,
	}
	if err := j.writeManifest(manifest); err != nil {
		return nil, err
	}

	return &Result{
		DocumentsEmbedded: len(entries),
		DocumentsSkipped:  skipped,
		Dimension:         dimension,
		TotalBytes:        totalBytes,
		Duration:          time.Since(start),
		OutputPath:        j.opts.OutputPath,
		ManifestPath:      j.opts.ManifestPath,
	}, nil
}

// acquireLock takes the output lock without blocking. Concurrent runs
// against the same output would interleave rate-limited API calls and
// race on the rename, so the second run fails fast instead.
func (j *Job) acquireLock() (*flock.Flock, error) {
	lockPath := j.opts.OutputPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring embed lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return lock, nil
}

// embedDocument embeds one document body with a bounded deadline.
func (j *Job) embedDocument(ctx context.Context, doc content.Document) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, perDocTimeout)
	defer cancel()

	resp, err := j.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(doc.Content, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return resp.Embeddings[0].Embedding, nil
}

func (j *Job) writeCorpus(entries []corpus.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}
	if err := writeFileAtomic(j.opts.OutputPath, data); err != nil {
		return fmt.Errorf("writing corpus: %w", err)
	}
	return nil
}

func (j *Job) writeManifest(m corpus.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeFileAtomic(j.opts.ManifestPath, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory
// and renames it into place, so a crashed run never leaves a
// half-written corpus behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// manifestPathFor derives the manifest location from the corpus path:
// data/embeddings.json becomes data/embeddings.manifest.json.
func manifestPathFor(outputPath string) string {
	ext := filepath.Ext(outputPath)
	base := outputPath[:len(outputPath)-len(ext)]
	return base + ".manifest" + ext
}

// docID derives a stable document ID from the relative path.
func docID(relPath string) string {
	hash := sha256.Sum256([]byte(relPath))
	return "doc_" + hex.EncodeToString(hash[:16])
}
