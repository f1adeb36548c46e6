package domain

import "github.com/remindhq/remind/internal/store"

// Chunk is one embedding-bearing slice of a source's full text. Chunks
// are created in bulk during ingestion and are independently addressable;
// their storage order carries no meaning.
type Chunk struct {
	store.Metadata
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

func (*Chunk) Collection() string { return CollectionChunk }

// EmbeddingText marks chunks for embedding on save.
func (c *Chunk) EmbeddingText() string { return c.Content }

// Insight is derived text attached to a source by transformation or
// answer flows, e.g. a summary or an extracted claim. Searched alongside
// chunks, cascade-deleted with its source.
type Insight struct {
	store.Metadata
	InsightType string `json:"insight_type"`
	Content     string `json:"content"`
	SourceID    string `json:"source_id"`
}

func (*Insight) Collection() string { return CollectionInsight }

func (i *Insight) EmbeddingText() string { return i.Content }
