package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/folioworks/folio/internal/chat"
	"github.com/folioworks/folio/internal/content"
	"github.com/folioworks/folio/internal/corpus"
	"github.com/folioworks/folio/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testServer(t *testing.T, streamer ChatStreamer) *Server {
	t.Helper()

	root := t.TempDir()
	doc := filepath.Join(root, "projects", "folio.md")
	if err := os.MkdirAll(filepath.Dir(doc), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(doc, []byte("# Folio\n\nThe portfolio backend.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	srv, err := NewServer(ServerConfig{
		Logger:       discardLogger(),
		ChatStreamer: streamer,
		Scanner:      content.NewScanner(root, 0, log.NewNop()),
		Corpus:       corpus.NewCache(filepath.Join(root, "missing.json"), log.NewNop()),
		CORSOrigins:  []string{"http://localhost:5173"},
		IsDev:        true,
		RateBurst:    100,
		SourcesTTL:   300,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServer_RequiresScanner(t *testing.T) {
	if _, err := NewServer(ServerConfig{Logger: discardLogger()}); err == nil {
		t.Fatal("expected error without scanner")
	}
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("/health status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("/health body = %s", w.Body.String())
	}
}

func TestServer_ReadyReportsChatDisabled(t *testing.T) {
	srv := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("/ready status = %d", w.Code)
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding /ready: %v", err)
	}
	if resp.ChatEnabled {
		t.Error("chatEnabled = true, want false without streamer")
	}
	if resp.CorpusSize != 0 {
		t.Errorf("corpusSize = %d, want 0 for missing corpus", resp.CorpusSize)
	}
}

func TestServer_SourcesListing(t *testing.T) {
	srv := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chatbot-sources", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("Cache-Control = %q", cc)
	}

	var resp SourcesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || len(resp.Sources) != 1 {
		t.Fatalf("response = %+v, want one source", resp)
	}
	if resp.Sources[0].Path != "projects/folio.md" || resp.Sources[0].Title != "Folio" {
		t.Errorf("source = %+v", resp.Sources[0])
	}
	if resp.Sources[0].Content != "# Folio\n\nThe portfolio backend.\n" {
		t.Errorf("Content = %q, want the full document body", resp.Sources[0].Content)
	}
	if resp.Categories["projects"] != 1 {
		t.Errorf("categories = %v", resp.Categories)
	}
}

func TestServer_ChatThroughFullStack(t *testing.T) {
	stub := &stubStreamer{
		chunks: []string{"I built this site."},
		output: chat.Output{Response: "I built this site."},
	}
	srv := testServer(t, stub)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"what did you build?"}`))
	r.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if !strings.Contains(body, `"content":"I built this site."`) {
		t.Errorf("missing content frame:\n%s", body)
	}
	if strings.Count(body, "data: "+doneSentinel) != 1 {
		t.Errorf("missing sentinel:\n%s", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := testServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/chat status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
