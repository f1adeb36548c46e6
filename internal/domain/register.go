package domain

import "github.com/remindhq/remind/internal/store"

// RegisterTypes populates a registry with every persisted entity type.
// Called once during startup wiring; the store cannot resolve documents
// of unregistered collections.
func RegisterTypes(r *store.Registry) {
	r.MustRegister(CollectionSource, func() store.Entity { return &Source{} })
	r.MustRegister(CollectionChunk, func() store.Entity { return &Chunk{} })
	r.MustRegister(CollectionInsight, func() store.Entity { return &Insight{} })
	r.MustRegister(CollectionModel, func() store.Entity { return &ModelSpec{} })
	r.MustRegister(CollectionRecord, func() store.Entity { return &DefaultModels{} })
}
