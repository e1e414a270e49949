// Package corpus loads and caches the precomputed embedding corpus
// that grounds the portfolio chatbot.
//
// The corpus is a flat JSON array of entries produced by the offline
// embed job. It is immutable once loaded: whatever is on disk at load
// time is authoritative, and updates happen only through an explicit
// Reload (bound to SIGHUP in serve mode).
package corpus

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Metadata describes the source document behind a corpus entry.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Date        string   `json:"date,omitempty"`
	FilePath    string   `json:"filePath"`
	Category    string   `json:"category,omitempty"`
}

// Entry is one embedded document. Entries are never mutated after
// loading; callers treat the embedding slice as read-only.
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// Manifest summarizes an embed run. Written next to the corpus file
// by the embed job.
type Manifest struct {
	GeneratedAt   time.Time      `json:"generatedAt"`
	Model         string         `json:"model"`
	Dimension     int            `json:"dimension"`
	DocumentCount int            `json:"documentCount"`
	SkippedCount  int            `json:"skippedCount,omitempty"`
	Categories    map[string]int `json:"categories"`
	TotalBytes    int64          `json:"totalBytes"`
}

// Load reads the corpus file at path.
//
// Failure degrades, it never propagates: a missing file, unreadable
// file, or malformed JSON yields an empty corpus and a log line. The
// chat pipeline then answers from the fixed fallback context instead
// of erroring the request.
//
// Entries are validated on the way in: the first entry fixes the
// expected embedding dimensionality, and any entry with a different
// vector length or an all-zero vector is dropped with a warning. This
// keeps degenerate vectors (division by zero in cosine similarity)
// and mixed-model corpora out of the scorer entirely.
func Load(path string, logger *slog.Logger) []Entry {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("corpus file not found, starting with empty corpus", "path", path)
		} else {
			logger.Warn("reading corpus file", "path", path, "error", err)
		}
		return nil
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("parsing corpus file, starting with empty corpus", "path", path, "error", err)
		return nil
	}

	entries := make([]Entry, 0, len(raw))
	dimension := 0
	for _, e := range raw {
		if len(e.Embedding) == 0 {
			logger.Warn("dropping corpus entry without embedding", "id", e.ID)
			continue
		}
		if dimension == 0 {
			dimension = len(e.Embedding)
		}
		if len(e.Embedding) != dimension {
			logger.Warn("dropping corpus entry with mismatched embedding dimension",
				"id", e.ID,
				"got", len(e.Embedding),
				"want", dimension,
			)
			continue
		}
		if isZeroVector(e.Embedding) {
			logger.Warn("dropping corpus entry with zero embedding", "id", e.ID)
			continue
		}
		entries = append(entries, e)
	}

	logger.Info("corpus loaded",
		"path", path,
		"entries", len(entries),
		"dropped", len(raw)-len(entries),
		"dimension", dimension,
	)
	return entries
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Cache is a process-wide read-only view of the corpus, populated at
// startup and refreshed only through Reload. It replaces the
// re-read-per-request behavior of the original site with one load and
// an explicit reload hook.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	entries  []Entry
	loadedAt time.Time
}

// NewCache creates a Cache bound to one resolved corpus path and
// performs the initial load. An empty path means no corpus location
// resolved at startup; the cache stays empty until Reload is called
// after the path appears (callers should pass the path from
// config.ResolveCorpusPath).
func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{path: path, logger: logger}
	c.Reload()
	return c
}

// Reload re-reads the corpus file and atomically swaps in the new
// entry set. Returns the number of entries now cached.
func (c *Cache) Reload() int {
	var entries []Entry
	if c.path != "" {
		entries = Load(c.path, c.logger)
	}

	c.mu.Lock()
	c.entries = entries
	c.loadedAt = time.Now()
	c.mu.Unlock()

	return len(entries)
}

// Snapshot returns the current entry set. The returned slice is shared
// and must be treated as read-only; a concurrent Reload swaps the
// cache's slice but never mutates a handed-out one.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LoadedAt returns when the cache last (re)loaded.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Path returns the resolved corpus path, empty when none resolved.
func (c *Cache) Path() string {
	return c.path
}
