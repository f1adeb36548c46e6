package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/errs"
)

// maxAskBody bounds the ask request size.
const maxAskBody = 1 << 20

// SSE event types for ask streaming.
const (
	eventStrategy = "strategy" // Planned searches
	eventAnswer   = "answer"   // One completed branch answer
	eventFinal    = "final"    // Synthesized answer with citations
	eventError    = "error"    // Terminal failure
)

// askHandler holds dependencies for the streaming ask endpoint.
type askHandler struct {
	asker  Asker
	logger *slog.Logger
}

// askRequest is the JSON body of POST /api/ask.
type askRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"`
}

// strategyPayload is the SSE data payload for the planning stage.
type strategyPayload struct {
	Reasoning string       `json:"reasoning"`
	Searches  []searchStep `json:"searches"`
}

type searchStep struct {
	Term         string `json:"term"`
	Instructions string `json:"instructions,omitempty"`
}

// answerPayload is the SSE data payload for one branch answer.
type answerPayload struct {
	Term string `json:"term"`
	Text string `json:"text"`
}

// finalPayload is the SSE data payload for the synthesized answer.
type finalPayload struct {
	Answer    string          `json:"answer"`
	Branches  []answerPayload `json:"branches"`
	Citations []citationItem  `json:"citations"`
}

type citationItem struct {
	Index      int    `json:"index"`
	DocumentID string `json:"documentId"`
	Snippet    string `json:"snippet"`
}

// errorPayload is the SSE data payload when the question fails.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ask handles POST /api/ask as an SSE stream. Each pipeline update is
// one event; the stream ends after a final or error event. Closing the
// connection cancels the question.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for update := range h.asker.Ask(r.Context(), req.Question, req.Model) {
		var err error
		switch update.Stage {
		case ask.StageStrategy:
			err = writeEvent(w, flusher, eventStrategy, toStrategyPayload(update.Strategy))
		case ask.StageBranch:
			err = writeEvent(w, flusher, eventAnswer, answerPayload{
				Term: update.Branch.Term,
				Text: update.Branch.Text,
			})
		case ask.StageFinal:
			err = writeEvent(w, flusher, eventFinal, toFinalPayload(update.Result))
		case ask.StageError:
			err = writeEvent(w, flusher, eventError, errorPayload{
				Code:    errs.Kind(update.Err),
				Message: update.Err.Error(),
			})
		}
		if err != nil {
			// Write failure usually means the client went away. The
			// update channel is buffered for every possible event, so
			// abandoning it never blocks the pipeline.
			h.logger.Debug("ask stream write failed", "error", err)
			return
		}
	}
}

func toStrategyPayload(s *ask.Strategy) strategyPayload {
	steps := make([]searchStep, len(s.Searches))
	for i, planned := range s.Searches {
		steps[i] = searchStep{Term: planned.Term, Instructions: planned.Instructions}
	}
	return strategyPayload{Reasoning: s.Reasoning, Searches: steps}
}

func toFinalPayload(result *ask.Result) finalPayload {
	branches := make([]answerPayload, len(result.BranchAnswers))
	for i, branch := range result.BranchAnswers {
		branches[i] = answerPayload{Term: branch.Term, Text: branch.Text}
	}
	citations := make([]citationItem, len(result.Citations))
	for i, c := range result.Citations {
		citations[i] = citationItem{Index: c.Index, DocumentID: c.DocumentID, Snippet: c.Snippet}
	}
	return finalPayload{Answer: result.FinalAnswer, Branches: branches, Citations: citations}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
