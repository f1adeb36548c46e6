package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/remindhq/remind/internal/errs"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code. The body
// is encoded into a buffer first so headers are only sent after a
// successful encoding and a proper 500 can still go out on failure.
func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeJSON(w, status, errorBody{Code: code, Message: message}, logger)
}

// writeTaxonomyError maps a pipeline error onto an HTTP status via its
// taxonomy kind and writes it out.
func writeTaxonomyError(w http.ResponseWriter, err error, logger *slog.Logger) {
	writeError(w, statusForError(err), errs.Kind(err), err.Error(), logger)
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch errs.Kind(err) {
	case "invalid_input":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "external_service":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
