//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/log"
	"github.com/remindhq/remind/internal/store"
	"github.com/remindhq/remind/internal/testutil"
)

// unitEmbedder returns a fixed unit vector so saves carry an embedding
// without a live model.
type unitEmbedder struct{ dim int }

func (e *unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	vec := make([]float32, e.dim)
	vec[0] = 1
	return vec, nil
}

// mapEmbedder returns a per-content vector so similarity ordering is
// controlled by the test.
type mapEmbedder struct{ vectors map[string][]float32 }

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func newIntegrationStore(t *testing.T, embedder store.Embedder) (*store.Store, *testutil.TestDB) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	registry := store.NewRegistry()
	domain.RegisterTypes(registry)
	return store.New(db.Pool, registry, embedder, log.NewNop()), db
}

func TestStore_SaveRoundTrip(t *testing.T) {
	s, _ := newIntegrationStore(t, &unitEmbedder{dim: 3})
	ctx := context.Background()

	src := &domain.Source{
		Title:    "brewing notes",
		Topics:   []string{"tea", "chemistry"},
		FullText: "tannins extract above 90C",
		Asset:    "notes/tea.md",
	}
	require.NoError(t, s.Save(ctx, src))
	require.True(t, src.Saved())
	created, updated := src.CreatedAt, src.UpdatedAt

	got, err := s.Get(ctx, src.ID)
	require.NoError(t, err)
	loaded, ok := got.(*domain.Source)
	require.True(t, ok, "Get returned %T", got)
	assert.Equal(t, src.Title, loaded.Title)
	assert.Equal(t, src.Topics, loaded.Topics)
	assert.Equal(t, src.FullText, loaded.FullText)
	assert.Equal(t, src.Asset, loaded.Asset)
	assert.True(t, loaded.CreatedAt.Equal(created))

	src.Title = "brewing notes, revised"
	require.NoError(t, s.Save(ctx, src))
	assert.True(t, src.CreatedAt.Equal(created), "update moved created_at")
	assert.False(t, src.UpdatedAt.Before(updated), "updated_at went backwards")

	got, err = s.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "brewing notes, revised", got.(*domain.Source).Title)
}

func TestStore_QueryByContainment(t *testing.T) {
	s, _ := newIntegrationStore(t, &unitEmbedder{dim: 3})
	ctx := context.Background()

	src := &domain.Source{Title: "parent", FullText: "body"}
	require.NoError(t, s.Save(ctx, src))
	for i := 0; i < 3; i++ {
		chunk := &domain.Chunk{Content: fmt.Sprintf("chunk %d", i), SourceID: src.ID}
		require.NoError(t, s.Save(ctx, chunk))
	}
	other := &domain.Chunk{Content: "unrelated", SourceID: "source:other"}
	require.NoError(t, s.Save(ctx, other))

	entities, err := s.Query(ctx, domain.CollectionChunk, map[string]any{"source_id": src.ID})
	require.NoError(t, err)
	require.Len(t, entities, 3)
	for i, e := range entities {
		chunk, ok := e.(*domain.Chunk)
		require.True(t, ok, "Query returned %T", e)
		assert.Equal(t, fmt.Sprintf("chunk %d", i), chunk.Content, "creation order not preserved")
	}

	count, err := s.Count(ctx, domain.CollectionChunk, map[string]any{"source_id": src.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStore_UpsertReplacesMatch(t *testing.T) {
	s, _ := newIntegrationStore(t, &unitEmbedder{dim: 3})
	ctx := context.Background()

	spec := &domain.ModelSpec{Name: "gemini-flash", Provider: "googleai", Type: domain.ModelTypeLanguage}
	require.NoError(t, s.Upsert(ctx, map[string]any{"name": "gemini-flash"}, spec))
	firstID := spec.ID

	replacement := &domain.ModelSpec{Name: "gemini-flash", Provider: "googleai", Type: domain.ModelTypeVision}
	require.NoError(t, s.Upsert(ctx, map[string]any{"name": "gemini-flash"}, replacement))
	assert.Equal(t, firstID, replacement.ID, "upsert did not reuse the matched document")

	count, err := s.Count(ctx, domain.CollectionModel, map[string]any{"name": "gemini-flash"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_EnsureVectorIndexConverges(t *testing.T) {
	s, db := newIntegrationStore(t, &unitEmbedder{dim: 3})
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.EnsureVectorIndex(ctx, domain.CollectionChunk, 3)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	var indexes int
	err := db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM pg_indexes WHERE tablename = $1 AND indexname = $2`,
		domain.CollectionChunk, domain.CollectionChunk+"_embedding_idx").Scan(&indexes)
	require.NoError(t, err)
	assert.Equal(t, 1, indexes, "racing creators must converge on one index")
}

func TestStore_SearchSimilarOrdersByDistance(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"north":     {1, 0, 0},
		"northeast": {0.7, 0.7, 0},
		"east":      {0, 1, 0},
	}}
	s, _ := newIntegrationStore(t, embedder)
	ctx := context.Background()

	for _, content := range []string{"east", "north", "northeast"} {
		chunk := &domain.Chunk{Content: content, SourceID: "source:compass"}
		require.NoError(t, s.Save(ctx, chunk))
	}
	// No content means no embedding; must never be returned.
	unembedded := &domain.Chunk{SourceID: "source:compass"}
	require.NoError(t, s.Save(ctx, unembedded))

	hits, err := s.SearchSimilar(ctx, domain.CollectionChunk, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Entity.(*domain.Chunk).Content)
	assert.Equal(t, "northeast", hits[1].Entity.(*domain.Chunk).Content)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
	assert.InDelta(t, 1.0, hits[0].Similarity, 0.001)
}
