package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/folioworks/folio/internal/content"
	"github.com/folioworks/folio/internal/corpus"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	ChatStreamer ChatStreamer     // Optional: nil makes /api/chat return 500
	Scanner      *content.Scanner // Required
	Corpus       *corpus.Cache    // Optional: nil disables corpus stats in /ready
	CORSOrigins  []string         // Allowed origins for CORS
	IsDev        bool             // Disables HSTS
	TrustProxy   bool             // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst    int              // Rate limiter burst size per IP (0 = default 30)
	SourcesTTL   int              // Cache-Control max-age for the sources listing, seconds
}

// Server is the portfolio backend HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Scanner == nil {
		return nil, errors.New("content scanner is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{streamer: cfg.ChatStreamer, logger: logger}
	sh := &sourcesHandler{scanner: cfg.Scanner, maxAge: cfg.SourcesTTL, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/chatbot-sources", sh.list)

	rl := newRateLimiter(rateLimiterRefillPerSec, cfg.RateBurst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Corpus, cfg.ChatStreamer != nil))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
