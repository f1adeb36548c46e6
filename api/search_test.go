package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/search"
	"github.com/remindhq/remind/internal/store"
)

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

func getSearch(t *testing.T, ts string, query string) (*http.Response, searchResponse) {
	t.Helper()
	resp, err := http.Get(ts + "/api/search?" + query)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var body searchResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestSearch(t *testing.T) {
	chunk := &domain.Chunk{Content: "steeping chemistry", SourceID: "source:abc"}
	chunk.ID = store.FormatID(domain.CollectionChunk, uuid.New())
	searcher := &fakeSearcher{hits: []search.Hit{
		{Kind: search.KindChunk, Entity: chunk, Score: 0.87},
	}}
	ts := newTestServer(t, nil, searcher, nil)

	resp, body := getSearch(t, ts.URL, "q=tea&k=5")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tea", searcher.gotTerm)
	assert.Equal(t, 5, searcher.gotK)
	assert.Equal(t, -1.0, searcher.gotMinScore, "absent min_score selects the merger default")
	assert.Equal(t, search.AllKinds(), searcher.gotKinds)

	require.Len(t, body.Items, 1)
	assert.Equal(t, 1, body.Total)
	item := body.Items[0]
	assert.Equal(t, "note", item.Kind)
	assert.Equal(t, "steeping chemistry", item.Content)
	assert.Equal(t, "source:abc", item.SourceID)
	assert.Equal(t, 0.87, item.Score)
}

func TestSearch_MissingQuery(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	resp, _ := getSearch(t, ts.URL, "k=5")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_KindsFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	ts := newTestServer(t, nil, searcher, nil)

	resp, _ := getSearch(t, ts.URL, "q=tea&kinds=insight")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, search.Kinds{Insights: true}, searcher.gotKinds)

	resp, _ = getSearch(t, ts.URL, "q=tea&kinds=bogus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown kind is rejected")
}

func TestSearch_MinScore(t *testing.T) {
	searcher := &fakeSearcher{}
	ts := newTestServer(t, nil, searcher, nil)

	resp, _ := getSearch(t, ts.URL, "q=tea&min_score=0.5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.5, searcher.gotMinScore)

	resp, _ = getSearch(t, ts.URL, "q=tea&min_score=2")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "out-of-range min_score is rejected")
}

func TestSearch_ClampsK(t *testing.T) {
	searcher := &fakeSearcher{}
	ts := newTestServer(t, nil, searcher, nil)

	resp, _ := getSearch(t, ts.URL, "q=tea&k=5000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, searcher.gotK)
}

func TestSearch_FailureMapsTaxonomy(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("%w: embed failed", errs.ErrExternal)}
	ts := newTestServer(t, nil, searcher, nil)

	resp, _ := getSearch(t, ts.URL, "q=tea")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
