// Package retrieval ranks corpus entries against a query embedding and
// assembles the bounded context that grounds a chat answer.
//
// The pipeline is a single stateless pass: score every entry with
// cosine similarity, discard everything at or below the similarity
// floor, rank descending, truncate to the top K, and concatenate the
// surviving contents. Ties keep insertion order (stable sort).
package retrieval

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/folioworks/folio/internal/corpus"
)

const (
	// SimilarityFloor is the exclusive lower bound for a corpus entry
	// to count as relevant. Entries scoring at or below it are
	// discarded before ranking.
	SimilarityFloor = 0.1

	// TopK is the maximum number of entries woven into the context.
	TopK = 3

	// FallbackContext is the fixed context used when the corpus is
	// empty or nothing scores above the floor. The prompt instructs
	// the model to redirect to contact information in that case.
	FallbackContext = "Portfolio information not available."

	// contextSeparator joins selected entry contents.
	contextSeparator = "\n\n"
)

// ErrVectorLengthMismatch indicates two vectors of different
// dimensionality were compared.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")

// Cosine computes cosine similarity between two vectors of equal
// length: dot product over the product of Euclidean norms. Result is
// in [-1, 1]. A zero-norm input yields 0 rather than NaN; the corpus
// loader already refuses degenerate vectors, so this only guards the
// query side.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrVectorLengthMismatch
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0, nil
	}
	return dot / den, nil
}

// Source identifies one selected corpus entry for the trailing
// citation payload of a chat response.
type Source struct {
	Title      string  `json:"title"`
	FilePath   string  `json:"filePath"`
	Similarity float64 `json:"similarity"`
}

// Selection is the result of one retrieval pass: the concatenated
// context string and the parallel source citations.
type Selection struct {
	Context string
	Sources []Source
}

// scored pairs an entry with its derived similarity for ranking.
// It exists only transiently during one request.
type scored struct {
	entry      *corpus.Entry
	similarity float64
}

// Select runs the full retrieval pass for one query embedding.
//
// An empty corpus skips scoring entirely and returns the fallback
// context with no sources. Entries whose dimensionality does not
// match the query are skipped; the loader normally guarantees a
// uniform corpus, so this only triggers when the configured embedder
// model changed without re-running the embed job.
func Select(query []float32, entries []corpus.Entry) Selection {
	if len(entries) == 0 {
		return Selection{Context: FallbackContext}
	}

	candidates := make([]scored, 0, len(entries))
	for i := range entries {
		sim, err := Cosine(query, entries[i].Embedding)
		if err != nil {
			continue
		}
		if sim <= SimilarityFloor {
			continue
		}
		candidates = append(candidates, scored{entry: &entries[i], similarity: sim})
	}

	if len(candidates) == 0 {
		return Selection{Context: FallbackContext}
	}

	// Stable: equal scores keep corpus order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > TopK {
		candidates = candidates[:TopK]
	}

	var b strings.Builder
	sources := make([]Source, 0, len(candidates))
	for i, c := range candidates {
		if i > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(c.entry.Content)
		sources = append(sources, Source{
			Title:      c.entry.Metadata.Title,
			FilePath:   c.entry.Metadata.FilePath,
			Similarity: c.similarity,
		})
	}

	return Selection{Context: b.String(), Sources: sources}
}
