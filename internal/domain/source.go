// Package domain defines the persisted entity types of the knowledge base
// and their collection bindings.
//
// Each type embeds store.Metadata and maps to one collection table. The JSON
// tags define the document body; identity and timestamps live in Meta and
// are managed by the store.
package domain

import (
	"context"
	"fmt"

	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/store"
)

// Collection names. These double as table names and as the collection
// component of composite ids.
const (
	CollectionSource  = "source"
	CollectionChunk   = "source_embedding"
	CollectionInsight = "source_insight"
	CollectionModel   = "model"
	CollectionRecord  = "record"
)

// Source is the root content unit: one ingested document. It logically
// owns its chunks and insights through their source_id references; the
// ownership is enforced here, not by the database.
type Source struct {
	store.Metadata
	Title    string   `json:"title"`
	Topics   []string `json:"topics,omitempty"`
	FullText string   `json:"full_text"`
	Asset    string   `json:"asset,omitempty"`
}

func (*Source) Collection() string { return CollectionSource }

// EmbeddedChunks returns how many chunks the source's text produced.
func (s *Source) EmbeddedChunks(ctx context.Context, st *store.Store) (int64, error) {
	return st.Count(ctx, CollectionChunk, map[string]any{"source_id": s.ID})
}

// Insights returns every insight attached to the source.
func (s *Source) Insights(ctx context.Context, st *store.Store) ([]*Insight, error) {
	entities, err := st.Query(ctx, CollectionInsight, map[string]any{"source_id": s.ID})
	if err != nil {
		return nil, err
	}
	out := make([]*Insight, 0, len(entities))
	for _, e := range entities {
		insight, ok := e.(*Insight)
		if !ok {
			return nil, fmt.Errorf("insight query returned unexpected type %T", e)
		}
		out = append(out, insight)
	}
	return out, nil
}

// AddInsight attaches a new insight to the source and persists it. Both
// the type and the content are required.
func (s *Source) AddInsight(ctx context.Context, st *store.Store, insightType, content string) (*Insight, error) {
	if insightType == "" || content == "" {
		return nil, fmt.Errorf("%w: insight type and content are both required", errs.ErrInvalidInput)
	}
	if !s.Saved() {
		return nil, fmt.Errorf("%w: source must be saved before adding insights", errs.ErrInvalidInput)
	}
	insight := &Insight{InsightType: insightType, Content: content, SourceID: s.ID}
	if err := st.Save(ctx, insight); err != nil {
		return nil, fmt.Errorf("saving insight for %s: %w", s.ID, err)
	}
	return insight, nil
}

// DeleteSourceCascade removes a source together with every chunk and
// insight that references it. Dependents go first so a failure midway
// never leaves orphans pointing at a deleted source.
func DeleteSourceCascade(ctx context.Context, s *store.Store, sourceID string) (bool, error) {
	filter := map[string]any{"source_id": sourceID}

	if _, err := s.DeleteWhere(ctx, CollectionChunk, filter); err != nil {
		return false, fmt.Errorf("deleting chunks of %s: %w", sourceID, err)
	}
	if _, err := s.DeleteWhere(ctx, CollectionInsight, filter); err != nil {
		return false, fmt.Errorf("deleting insights of %s: %w", sourceID, err)
	}
	return s.Delete(ctx, sourceID)
}
