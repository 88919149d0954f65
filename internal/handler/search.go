package handler

import (
	"log/slog"
	"net/http"

	"booktracker/internal/search"
)

// SearchHandler proxies book metadata lookups to the Google Books API.
type SearchHandler struct {
	client *search.Client
	logger *slog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(client *search.Client, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{client: client, logger: logger}
}

// HandleSearch looks up book candidates for the add-book form.
//
// HTTP: GET /api/search?q=dune
// Auth: Required — the proxy exists for our users, not as an open relay.
//
// An empty query is not an error: it returns an empty array, matching what
// a search box expects while the user is still typing.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.client.Search(r.Context(), query)
	if err != nil {
		// Upstream failures are our 502, not the client's fault.
		h.logger.Error("book search failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "book search is temporarily unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, results)
}
