// Package search merges similarity results across the searchable record
// kinds of the knowledge base.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/store"
)

// DefaultMinScore is the similarity threshold applied when the caller
// does not supply one.
const DefaultMinScore = 0.2

// Kind labels where a hit came from. The values are the citation tag
// kinds the answer pipeline embeds in generated text.
type Kind string

const (
	KindChunk   Kind = "note"
	KindInsight Kind = "insight"
)

// Kinds selects which record kinds a search covers.
type Kinds struct {
	Chunks   bool
	Insights bool
}

// AllKinds enables every searchable kind.
func AllKinds() Kinds { return Kinds{Chunks: true, Insights: true} }

// Hit is one merged search result.
type Hit struct {
	Kind   Kind
	Entity store.Entity
	Score  float64
}

// VectorStore is the slice of the document store the merger needs.
type VectorStore interface {
	SearchSimilar(ctx context.Context, collection string, embedding []float32, k int) ([]store.Hit, error)
}

// Embedder generates the query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Merger embeds a query term once and fans it out across the enabled
// record kinds, merging the per-kind result lists into a single ranked
// list.
type Merger struct {
	store    VectorStore
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Merger.
func New(s VectorStore, embedder Embedder, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{store: s, embedder: embedder, logger: logger}
}

// Search returns up to k hits for term across the enabled kinds, best
// first. An empty term yields no hits without touching the embedder. A
// negative minScore selects DefaultMinScore.
//
// Ties are broken stably: at equal score, chunk hits precede insight hits
// and each kind keeps its backend order.
func (m *Merger) Search(ctx context.Context, term string, k int, kinds Kinds, minScore float64) ([]Hit, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: result limit must be positive, got %d", errs.ErrInvalidInput, k)
	}
	if minScore < 0 {
		minScore = DefaultMinScore
	}

	vector, err := m.embedder.Embed(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding search term: %v", errs.ErrExternal, err)
	}

	// Kind enumeration order is fixed so the tie-break below stays stable.
	targets := []struct {
		kind       Kind
		collection string
		enabled    bool
	}{
		{KindChunk, domain.CollectionChunk, kinds.Chunks},
		{KindInsight, domain.CollectionInsight, kinds.Insights},
	}

	var merged []Hit
	for _, target := range targets {
		if !target.enabled {
			continue
		}
		hits, err := m.store.SearchSimilar(ctx, target.collection, vector, k)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", target.collection, err)
		}
		for _, hit := range hits {
			if hit.Similarity < minScore {
				continue
			}
			merged = append(merged, Hit{Kind: target.kind, Entity: hit.Entity, Score: hit.Similarity})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	m.logger.Debug("similarity search merged", "term_length", len(term), "k", k, "hits", len(merged))
	return merged, nil
}
