package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/remindhq/remind/internal/domain"
)

// maxIngestBody bounds the ingest request size. Full texts are expected
// to be large but not unbounded.
const maxIngestBody = 10 << 20

// ingestHandler holds dependencies for the ingest endpoint.
type ingestHandler struct {
	ingestor Ingestor
	logger   *slog.Logger
}

// ingestRequest is the JSON body of POST /api/ingest.
type ingestRequest struct {
	Title    string   `json:"title"`
	Topics   []string `json:"topics"`
	FullText string   `json:"full_text"`
	Asset    string   `json:"asset"`
}

// ingestResponse reports the created source and how many chunks its text
// produced.
type ingestResponse struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

// ingest handles POST /api/ingest: creates a source and vectorizes its
// full text in one call.
func (h *ingestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "missing_title", "title is required", h.logger)
		return
	}

	src := &domain.Source{
		Title:    req.Title,
		Topics:   req.Topics,
		FullText: req.FullText,
		Asset:    req.Asset,
	}

	chunks, err := h.ingestor.Ingest(r.Context(), src)
	if err != nil {
		h.logger.Error("ingesting source", "error", err, "title", req.Title)
		writeTaxonomyError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{ID: src.ID, Chunks: chunks}, h.logger)
}
