package retrieval

import (
	"errors"
	"math"
	"testing"

	"github.com/folioworks/folio/internal/corpus"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestCosine_SelfSimilarity(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.3, -0.7, 0.2},
		{5, 5, 5, 5},
	}
	for _, v := range vectors {
		sim, err := Cosine(v, v)
		if err != nil {
			t.Fatalf("Cosine(v, v) error: %v", err)
		}
		if !almostEqual(sim, 1.0) {
			t.Errorf("Cosine(v, v) = %v, want 1.0", sim)
		}
	}
}

func TestCosine_Symmetry(t *testing.T) {
	a := []float32{0.1, 0.9, -0.4}
	b := []float32{-0.2, 0.5, 0.8}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(ab, ba) {
		t.Errorf("Cosine(a,b) = %v, Cosine(b,a) = %v, want equal", ab, ba)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(sim, 0) {
		t.Errorf("Cosine(orthogonal) = %v, want 0", sim)
	}
}

func TestCosine_Opposite(t *testing.T) {
	sim, err := Cosine([]float32{1, 2}, []float32{-1, -2})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(sim, -1.0) {
		t.Errorf("Cosine(opposite) = %v, want -1.0", sim)
	}
}

func TestCosine_LengthMismatch(t *testing.T) {
	if _, err := Cosine([]float32{1, 0}, []float32{1, 0, 0}); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Errorf("Cosine() error = %v, want ErrVectorLengthMismatch", err)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0}, []float32{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Errorf("Cosine(zero, v) = %v, want 0", sim)
	}
}

func TestSelect_EmptyCorpus(t *testing.T) {
	sel := Select([]float32{1, 0}, nil)
	if sel.Context != FallbackContext {
		t.Errorf("Context = %q, want fallback", sel.Context)
	}
	if len(sel.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", sel.Sources)
	}
}

// TestSelect_WorkedExample is the two-entry example from the retrieval
// contract: query [1,0] against contents A ([1,0]) and B ([0,1]) must
// select A alone with similarity 1.0.
func TestSelect_WorkedExample(t *testing.T) {
	entries := []corpus.Entry{
		{Content: "A", Metadata: corpus.Metadata{Title: "A", FilePath: "a.md"}, Embedding: []float32{1, 0}},
		{Content: "B", Metadata: corpus.Metadata{Title: "B", FilePath: "b.md"}, Embedding: []float32{0, 1}},
	}

	sel := Select([]float32{1, 0}, entries)

	if sel.Context != "A" {
		t.Errorf("Context = %q, want %q", sel.Context, "A")
	}
	if len(sel.Sources) != 1 {
		t.Fatalf("Sources = %d, want 1", len(sel.Sources))
	}
	if sel.Sources[0].FilePath != "a.md" {
		t.Errorf("Sources[0].FilePath = %q, want a.md", sel.Sources[0].FilePath)
	}
	if !almostEqual(sel.Sources[0].Similarity, 1.0) {
		t.Errorf("Sources[0].Similarity = %v, want 1.0", sel.Sources[0].Similarity)
	}
}

func TestSelect_NeverExceedsTopK(t *testing.T) {
	var entries []corpus.Entry
	for range 10 {
		entries = append(entries, corpus.Entry{
			Content:   "match",
			Embedding: []float32{1, 0.01},
		})
	}

	sel := Select([]float32{1, 0}, entries)
	if len(sel.Sources) > TopK {
		t.Errorf("len(Sources) = %d, want at most %d", len(sel.Sources), TopK)
	}
}

func TestSelect_FloorIsExclusive(t *testing.T) {
	// Against the query [1,0,0,0] this entry's cosine is 1/sqrt(1)/
	// sqrt(100) = 1/10, which is bit-exact 0.1 in float64: dot and
	// both squared norms are small integers and 100 is a perfect
	// square, so no rounding happens before the final division.
	query := []float32{1, 0, 0, 0}
	floorVec := []float32{1, 7, 7, 1}

	sim, err := Cosine(query, floorVec)
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if sim != SimilarityFloor {
		t.Fatalf("fixture similarity = %v, want exactly %v", sim, SimilarityFloor)
	}

	// An entry scoring exactly at the floor must be discarded: the
	// contract is similarity strictly greater than the floor.
	entries := []corpus.Entry{
		{Content: "at floor", Embedding: floorVec},
	}

	sel := Select(query, entries)
	if len(sel.Sources) != 0 {
		t.Errorf("entry scoring at the floor survived: %v", sel.Sources)
	}
	if sel.Context != FallbackContext {
		t.Errorf("Context = %q, want fallback", sel.Context)
	}
}

func TestSelect_NoSourceBelowFloor(t *testing.T) {
	entries := []corpus.Entry{
		{Content: "close", Metadata: corpus.Metadata{Title: "close"}, Embedding: []float32{0.9, 0.1}},
		{Content: "far", Metadata: corpus.Metadata{Title: "far"}, Embedding: []float32{-0.5, 0.9}},
	}

	sel := Select([]float32{1, 0}, entries)
	for _, s := range sel.Sources {
		if s.Similarity <= SimilarityFloor {
			t.Errorf("source %q has similarity %v, at or below floor %v", s.Title, s.Similarity, SimilarityFloor)
		}
	}
}

func TestSelect_RanksDescending(t *testing.T) {
	entries := []corpus.Entry{
		{Content: "weak", Metadata: corpus.Metadata{Title: "weak"}, Embedding: []float32{0.5, 0.86}},
		{Content: "strong", Metadata: corpus.Metadata{Title: "strong"}, Embedding: []float32{1, 0.01}},
		{Content: "middle", Metadata: corpus.Metadata{Title: "middle"}, Embedding: []float32{0.8, 0.6}},
	}

	sel := Select([]float32{1, 0}, entries)
	if len(sel.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(sel.Sources))
	}
	for i := 1; i < len(sel.Sources); i++ {
		if sel.Sources[i].Similarity > sel.Sources[i-1].Similarity {
			t.Errorf("sources not descending at index %d: %v", i, sel.Sources)
		}
	}
	if sel.Sources[0].Title != "strong" {
		t.Errorf("top source = %q, want strong", sel.Sources[0].Title)
	}
}

func TestSelect_ContextJoinedWithBlankLine(t *testing.T) {
	entries := []corpus.Entry{
		{Content: "first", Embedding: []float32{1, 0}},
		{Content: "second", Embedding: []float32{0.9, 0.1}},
	}

	sel := Select([]float32{1, 0}, entries)
	want := "first\n\nsecond"
	if sel.Context != want {
		t.Errorf("Context = %q, want %q", sel.Context, want)
	}
}

func TestSelect_SkipsMismatchedDimensions(t *testing.T) {
	entries := []corpus.Entry{
		{Content: "bad", Embedding: []float32{1, 0, 0}},
		{Content: "good", Metadata: corpus.Metadata{Title: "good"}, Embedding: []float32{1, 0}},
	}

	sel := Select([]float32{1, 0}, entries)
	if len(sel.Sources) != 1 || sel.Sources[0].Title != "good" {
		t.Errorf("Sources = %v, want only the dimensionally-consistent entry", sel.Sources)
	}
}
