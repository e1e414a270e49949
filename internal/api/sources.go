package api

import (
	"fmt"
	"net/http"

	"github.com/folioworks/folio/internal/content"
	"github.com/folioworks/folio/internal/log"
)

// SourceInfo describes one chatbot source document, body included so
// the front end can render the markdown without a second round trip.
type SourceInfo struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Date        string   `json:"date,omitempty"`
	Content     string   `json:"content"`
	SizeBytes   int64    `json:"sizeBytes"`
	LineCount   int      `json:"lineCount"`
	WordCount   int      `json:"wordCount"`
}

// SourcesResponse is the GET /api/chatbot-sources payload.
type SourcesResponse struct {
	Sources    []SourceInfo   `json:"sources"`
	Count      int            `json:"count"`
	Categories map[string]int `json:"categories"`
}

// sourcesHandler lists the documents the chatbot can ground answers
// in. Results are cacheable; the scanner memoizes scans and the
// response carries a matching Cache-Control max-age.
type sourcesHandler struct {
	scanner *content.Scanner
	maxAge  int
	logger  log.Logger
}

// list handles GET /api/chatbot-sources.
func (h *sourcesHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.scanner.Scan()
	if err != nil {
		h.logger.Error("scanning chatbot sources", "error", err)
		WriteError(w, http.StatusInternalServerError, "scan_failed", "failed to list sources", h.logger)
		return
	}

	sources := make([]SourceInfo, len(docs))
	categories := make(map[string]int)
	for i, doc := range docs {
		sources[i] = SourceInfo{
			Path:        doc.Path,
			Title:       doc.Title,
			Category:    doc.Category,
			Description: doc.Description,
			Tags:        doc.Tags,
			Date:        doc.Date,
			Content:     doc.Content,
			SizeBytes:   doc.SizeBytes,
			LineCount:   doc.LineCount,
			WordCount:   doc.WordCount,
		}
		categories[doc.Category]++
	}

	if h.maxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAge))
	}

	WriteJSON(w, http.StatusOK, SourcesResponse{
		Sources:    sources,
		Count:      len(sources),
		Categories: categories,
	})
}
