package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/folioworks/folio/internal/config"
	"github.com/folioworks/folio/internal/log"
)

func TestSetup_WithoutCredentialDisablesChat(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	corpusPath := filepath.Join(t.TempDir(), "embeddings.json")
	if err := os.WriteFile(corpusPath, []byte(`[
		{"id":"a","content":"Hello","metadata":{"title":"A","filePath":"a.md"},"embedding":[1,0]}
	]`), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	cfg := &config.Config{CorpusPath: corpusPath}

	a, err := Setup(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	if a.ChatEnabled() {
		t.Error("ChatEnabled() = true, want false without credential")
	}
	if a.Flow != nil || a.Pipeline != nil || a.Genkit != nil {
		t.Error("model components should be nil without credential")
	}
	if a.Corpus == nil || a.Corpus.Len() != 1 {
		t.Errorf("corpus should load independently of the credential, got %+v", a.Corpus)
	}
}

func TestProvideCorpus_MissingFileDegradesToEmpty(t *testing.T) {
	cfg := &config.Config{
		CorpusCandidates: []string{filepath.Join(t.TempDir(), "nope.json")},
	}

	cache := provideCorpus(cfg, log.NewNop())
	if cache == nil {
		t.Fatal("cache is nil")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
}
