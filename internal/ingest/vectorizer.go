// Package ingest turns a source's full text into embedding-bearing chunk
// records, embedding concurrently to amortize provider latency.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/store"
	"github.com/remindhq/remind/internal/text"
)

// ChunkStore is the slice of the document store the vectorizer needs.
type ChunkStore interface {
	Save(ctx context.Context, e store.Entity) error
}

// Vectorizer splits source text into token-bounded chunks and persists
// one chunk record per piece. Chunk saves run concurrently; the first
// failure aborts the remaining work, but chunks already saved stay in
// storage (ingestion is idempotently re-derivable, not transactional).
type Vectorizer struct {
	store       ChunkStore
	chunkTokens int
	workers     int
	logger      *slog.Logger
}

// New creates a Vectorizer. chunkTokens is the target chunk size in
// estimated tokens; workers bounds concurrent saves.
func New(s ChunkStore, chunkTokens, workers int, logger *slog.Logger) *Vectorizer {
	if chunkTokens <= 0 {
		chunkTokens = 1024
	}
	if workers <= 0 {
		workers = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Vectorizer{
		store:       s,
		chunkTokens: chunkTokens,
		workers:     workers,
		logger:      logger,
	}
}

// Ingest persists the source, then vectorizes its full text. It returns
// the number of chunks written.
func (v *Vectorizer) Ingest(ctx context.Context, src *domain.Source) (int, error) {
	if err := v.store.Save(ctx, src); err != nil {
		return 0, fmt.Errorf("saving source: %w", err)
	}
	return v.Vectorize(ctx, src)
}

// Vectorize splits the source's full text and saves one chunk per piece.
// An empty text is a no-op; a split yielding zero chunks is a no-op with
// a warning. The source must already be persisted so chunks can
// reference its id.
func (v *Vectorizer) Vectorize(ctx context.Context, src *domain.Source) (int, error) {
	if !src.Saved() {
		return 0, fmt.Errorf("%w: source must be saved before vectorizing", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(src.FullText) == "" {
		v.logger.Debug("source has no text, skipping vectorization", "source_id", src.ID)
		return 0, nil
	}

	chunks := text.Split(src.FullText, v.chunkTokens)
	if len(chunks) == 0 {
		v.logger.Warn("text split produced no chunks", "source_id", src.ID,
			"text_length", len(src.FullText))
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, content := range chunks {
		g.Go(func() error {
			chunk := &domain.Chunk{Content: content, SourceID: src.ID}
			if err := v.store.Save(ctx, chunk); err != nil {
				return fmt.Errorf("saving chunk for %s: %w", src.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	v.logger.Debug("vectorized source", "source_id", src.ID, "chunks", len(chunks))
	return len(chunks), nil
}
