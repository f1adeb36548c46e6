package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/errs"
)

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAsk_StreamsAllStages(t *testing.T) {
	asker := &fakeAsker{updates: []ask.Update{
		{Stage: ask.StageStrategy, Strategy: &ask.Strategy{
			Reasoning: "check brewing notes",
			Searches:  []ask.Search{{Term: "tannins", Instructions: "explain"}},
		}},
		{Stage: ask.StageBranch, Branch: &ask.BranchAnswer{Term: "tannins", Text: "partial [1]"}},
		{Stage: ask.StageFinal, Result: &ask.Result{
			FinalAnswer:   "final answer [1]",
			BranchAnswers: []ask.BranchAnswer{{Term: "tannins", Text: "partial [1]"}},
			Citations:     []ask.Citation{{Index: 1, DocumentID: "source_embedding:x", Snippet: "snip"}},
		}},
	}}
	ts := newTestServer(t, nil, nil, asker)

	resp := postJSON(t, ts.URL+"/api/ask", `{"question":"why is tea bitter?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, eventStrategy, events[0].name)
	assert.Equal(t, eventAnswer, events[1].name)
	assert.Equal(t, eventFinal, events[2].name)

	var strategy strategyPayload
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &strategy))
	assert.Equal(t, "check brewing notes", strategy.Reasoning)
	require.Len(t, strategy.Searches, 1)
	assert.Equal(t, "tannins", strategy.Searches[0].Term)

	var final finalPayload
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &final))
	assert.Equal(t, "final answer [1]", final.Answer)
	require.Len(t, final.Citations, 1)
	assert.Equal(t, "source_embedding:x", final.Citations[0].DocumentID)
	assert.Equal(t, 1, final.Citations[0].Index)
}

func TestAsk_ErrorEvent(t *testing.T) {
	asker := &fakeAsker{updates: []ask.Update{
		{Stage: ask.StageError, Err: fmt.Errorf("%w: no language model configured", errs.ErrNotFound)},
	}}
	ts := newTestServer(t, nil, nil, asker)

	resp := postJSON(t, ts.URL+"/api/ask", `{"question":"q"}`)
	events := readSSE(t, resp)
	require.Len(t, events, 1)
	require.Equal(t, eventError, events[0].name)

	var payload errorPayload
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &payload))
	assert.Equal(t, "not_found", payload.Code)
}

func TestAsk_InvalidBody(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	resp := postJSON(t, ts.URL+"/api/ask", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEqual(t, "text/event-stream", resp.Header.Get("Content-Type"),
		"rejected request must not start an SSE stream")
}
