// Package content discovers and describes the markdown source
// documents behind the portfolio chatbot.
//
// It backs two consumers: the /api/chatbot-sources listing (full
// document inventory with counts and heuristic metadata) and the
// offline embed job (which embeds each document's body). Metadata
// comes from YAML frontmatter when present and falls back to
// heuristics: first heading for the title, first paragraph for the
// description, category from the top-level directory.
package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is one markdown source file with derived metadata.
type Document struct {
	Path        string   `json:"path"` // Relative to the content root, forward slashes
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Date        string   `json:"date,omitempty"`
	Content     string   `json:"content"` // Body without frontmatter
	SizeBytes   int64    `json:"sizeBytes"`
	LineCount   int      `json:"lineCount"`
	WordCount   int      `json:"wordCount"`
}

// frontmatter is the subset of YAML keys the site's markdown uses.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Date        string   `yaml:"date"`
	Category    string   `yaml:"category"`
}

// descriptionMaxRunes bounds heuristic descriptions extracted from the
// first body paragraph.
const descriptionMaxRunes = 200

// Scanner walks a content directory for markdown documents.
// Scan results are memoized for a fixed interval since the corpus is
// static between deploys.
//
// Scanner is safe for concurrent use by multiple goroutines.
type Scanner struct {
	root   string
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	cached    []Document
	scannedAt time.Time
}

// NewScanner creates a Scanner over root. ttl controls how long scan
// results are reused; zero disables memoization.
func NewScanner(root string, ttl time.Duration, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{root: root, ttl: ttl, logger: logger}
}

// Scan returns all markdown documents under the content root, sorted
// by relative path. Results may be served from the memoized previous
// scan when within the TTL.
func (s *Scanner) Scan() ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.ttl > 0 && time.Since(s.scannedAt) < s.ttl {
		return s.cached, nil
	}

	docs, err := scanDir(s.root, s.logger)
	if err != nil {
		return nil, err
	}

	s.cached = docs
	s.scannedAt = time.Now()
	return docs, nil
}

// scanDir walks root and parses every markdown file.
// Unreadable files are skipped with a warning; the walk continues.
func scanDir(root string, logger *slog.Logger) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path %q is not a directory", root)
	}

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walking content dir", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			// Hidden directories (.git, .obsidian, ...) are not content.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		doc, err := parseFile(root, path)
		if err != nil {
			logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking content dir: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// parseFile reads one markdown file and derives its metadata.
func parseFile(root, path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	fm, body := splitFrontmatter(string(raw))

	doc := Document{
		Path:        rel,
		Title:       fm.Title,
		Category:    fm.Category,
		Description: fm.Description,
		Tags:        fm.Tags,
		Date:        fm.Date,
		Content:     body,
		SizeBytes:   int64(len(raw)),
		LineCount:   strings.Count(body, "\n") + 1,
		WordCount:   len(strings.Fields(body)),
	}

	if doc.Title == "" {
		doc.Title = headingTitle(body, rel)
	}
	if doc.Category == "" {
		doc.Category = categoryFromPath(rel)
	}
	if doc.Description == "" {
		doc.Description = firstParagraph(body)
	}
	if len(doc.Tags) == 0 {
		doc.Tags = heuristicTags(doc.Category, rel)
	}

	return doc, nil
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// body. Malformed frontmatter degrades to "no frontmatter" rather than
// failing the document.
func splitFrontmatter(content string) (frontmatter, string) {
	s := strings.TrimPrefix(content, "\uFEFF")
	if !strings.HasPrefix(s, "---") {
		return frontmatter{}, content
	}

	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return frontmatter{}, content
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return frontmatter{}, content
	}

	return fm, strings.TrimPrefix(parts[2], "\n")
}

// headingTitle extracts the first ATX heading, falling back to the
// file name without extension.
func headingTitle(body, rel string) string {
	for line := range strings.Lines(body) {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(after, "#"))
		}
	}
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// categoryFromPath derives a category from the top-level directory of
// the relative path; files at the root fall into "general".
func categoryFromPath(rel string) string {
	if dir, _, ok := strings.Cut(rel, "/"); ok {
		return dir
	}
	return "general"
}

// firstParagraph returns the first non-heading paragraph of the body,
// truncated to descriptionMaxRunes.
func firstParagraph(body string) string {
	var b strings.Builder
	for line := range strings.Lines(body) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if b.Len() > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(trimmed)
	}

	desc := b.String()
	runes := []rune(desc)
	if len(runes) > descriptionMaxRunes {
		desc = strings.TrimSpace(string(runes[:descriptionMaxRunes])) + "..."
	}
	return desc
}

// heuristicTags builds a small tag set from the category and the file
// name segments when the frontmatter declares none.
func heuristicTags(category, rel string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	add(category)
	base := filepath.Base(rel)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	}) {
		add(part)
	}
	return tags
}
