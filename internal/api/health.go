package api

import (
	"net/http"
	"time"

	"github.com/folioworks/folio/internal/corpus"
)

// health is a simple health check endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyResponse reports whether the service can answer grounded
// questions, with corpus details for dashboards.
type readyResponse struct {
	Status       string `json:"status"`
	ChatEnabled  bool   `json:"chatEnabled"`
	CorpusSize   int    `json:"corpusSize"`
	CorpusLoaded string `json:"corpusLoaded,omitempty"`
}

// readiness reports readiness. The service is ready even with an empty
// corpus or disabled chat; the payload surfaces both so operators can
// tell a cold deploy from a broken one.
func readiness(cache *corpus.Cache, chatEnabled bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := readyResponse{Status: "ok", ChatEnabled: chatEnabled}
		if cache != nil {
			resp.CorpusSize = cache.Len()
			if loaded := cache.LoadedAt(); !loaded.IsZero() {
				resp.CorpusLoaded = loaded.UTC().Format(time.RFC3339)
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	})
}
