package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecoveryMiddleware_Panic(t *testing.T) {
	logger := discardLogger()

	panicHandler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	})

	handler := recoveryMiddleware(logger)(panicHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("recoveryMiddleware(panic) status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	if detail := decodeErrorEnvelope(t, w); detail.Code != "internal_error" {
		t.Errorf("recoveryMiddleware(panic) code = %q, want %q", detail.Code, "internal_error")
	}
}

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"ok": "true"})
	})

	handler := recoveryMiddleware(discardLogger())(okHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("recoveryMiddleware(ok) status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seenID string
	handler := requestIDMiddleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenID, _ = requestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	headerID := w.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if seenID != headerID {
		t.Errorf("context ID %q != header ID %q", seenID, headerID)
	}
	if _, err := uuid.Parse(headerID); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", headerID, err)
	}
}

func TestCORSMiddleware_AllowedOriginPreflight(t *testing.T) {
	origins := []string{"http://localhost:5173"}
	handler := corsMiddleware(origins)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	r.Header.Set("Origin", "http://localhost:5173")

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("CORS preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	handler := corsMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chatbot-sources", nil)
	r.Header.Set("Origin", "http://evil.example")

	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestLoggingWriter_CapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	lw.WriteHeader(http.StatusTeapot)
	if _, err := lw.Write([]byte("short")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if lw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want %d", lw.statusCode, http.StatusTeapot)
	}
	if lw.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", lw.bytesWritten)
	}
}

func TestLoggingWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	if _, err := lw.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if lw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want implicit 200", lw.statusCode)
	}
}

func TestSetSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	setSecurityHeaders(w, false)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("HSTS missing in non-dev mode")
	}

	w = httptest.NewRecorder()
	setSecurityHeaders(w, true)
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should be absent in dev mode, got %q", got)
	}
}
