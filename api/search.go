package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/search"
)

// maxSearchTermLength is the maximum allowed search term length in bytes.
const maxSearchTermLength = 1000

// searchHandler holds dependencies for the search endpoint.
type searchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

// searchResultItem is the JSON representation of one merged hit.
type searchResultItem struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
	SourceID string  `json:"sourceId,omitempty"`
}

// search handles GET /api/search?q=&k=&min_score=&kinds=note,insight.
// Omitted parameters fall back to the merger defaults.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required", h.logger)
		return
	}
	if len(term) > maxSearchTermLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	k := parseIntParam(r, "k", 10, 1, 100)

	minScore := -1.0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeError(w, http.StatusBadRequest, "invalid_min_score", "min_score must be a number between 0 and 1", h.logger)
			return
		}
		minScore = parsed
	}

	kinds, ok := parseKindsParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kinds", "kinds must be a comma-separated subset of note,insight", h.logger)
		return
	}

	hits, err := h.searcher.Search(r.Context(), term, k, kinds, minScore)
	if err != nil {
		h.logger.Error("searching", "error", err, "term_length", len(term))
		writeError(w, statusForError(err), errs.Kind(err), "search failed", h.logger)
		return
	}

	items := make([]searchResultItem, len(hits))
	for i, hit := range hits {
		items[i] = toSearchResultItem(hit)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}

func toSearchResultItem(hit search.Hit) searchResultItem {
	item := searchResultItem{
		ID:    hit.Entity.Meta().ID,
		Kind:  string(hit.Kind),
		Score: hit.Score,
	}
	switch doc := hit.Entity.(type) {
	case *domain.Chunk:
		item.Content = doc.Content
		item.SourceID = doc.SourceID
	case *domain.Insight:
		item.Content = doc.Content
		item.SourceID = doc.SourceID
	}
	return item
}

// parseKindsParam reads the kinds selector. An absent parameter enables
// every kind.
func parseKindsParam(r *http.Request) (search.Kinds, bool) {
	raw := r.URL.Query().Get("kinds")
	if raw == "" {
		return search.AllKinds(), true
	}

	var kinds search.Kinds
	for _, name := range strings.Split(raw, ",") {
		switch search.Kind(strings.TrimSpace(name)) {
		case search.KindChunk:
			kinds.Chunks = true
		case search.KindInsight:
			kinds.Insights = true
		default:
			return search.Kinds{}, false
		}
	}
	return kinds, true
}

// parseIntParam extracts an integer query parameter, clamped to
// [minVal, maxVal]. Missing or malformed values fall back to the default.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return min(max(n, minVal), maxVal)
}
