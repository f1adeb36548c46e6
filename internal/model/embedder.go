package model

import (
	"context"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/store"
)

// RouterEmbedder adapts the router's embedding default to the document
// store's Embedder interface. When no embedding default is configured it
// reports store.ErrNoEmbedder, which the store treats as a degraded
// condition rather than a failure.
type RouterEmbedder struct {
	router *Router
}

// NewRouterEmbedder wraps a router.
func NewRouterEmbedder(r *Router) *RouterEmbedder {
	return &RouterEmbedder{router: r}
}

// Embed resolves the embedding default and embeds text with it.
func (e *RouterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	handle, err := e.router.Resolve(ctx, "", domain.SemanticEmbedding, "", Options{})
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.Embedding == nil {
		return nil, store.ErrNoEmbedder
	}
	return handle.Embedding.Embed(ctx, text)
}
