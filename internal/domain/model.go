package domain

import (
	"context"
	"fmt"

	"github.com/remindhq/remind/internal/store"
)

// ModelType classifies what a model can do. The router maps each type to
// a construction path; unknown types are rejected as invalid input.
type ModelType string

const (
	ModelTypeLanguage     ModelType = "language"
	ModelTypeVision       ModelType = "vision"
	ModelTypeEmbedding    ModelType = "embedding"
	ModelTypeSpeechToText ModelType = "speech-to-text"
	ModelTypeTextToSpeech ModelType = "text-to-speech"
)

// Valid reports whether t is a known model type.
func (t ModelType) Valid() bool {
	switch t {
	case ModelTypeLanguage, ModelTypeVision, ModelTypeEmbedding,
		ModelTypeSpeechToText, ModelTypeTextToSpeech:
		return true
	}
	return false
}

// ModelSpec is the persisted identity of a model: which provider serves
// it and what it can do. Live instances are constructed and cached by the
// router; the spec is the durable part.
type ModelSpec struct {
	store.Metadata
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	Type     ModelType `json:"type"`
}

func (*ModelSpec) Collection() string { return CollectionModel }

// ListModelsByType returns every stored descriptor of the given type.
func ListModelsByType(ctx context.Context, st *store.Store, t ModelType) ([]*ModelSpec, error) {
	entities, err := st.Query(ctx, CollectionModel, map[string]any{"type": string(t)})
	if err != nil {
		return nil, err
	}
	out := make([]*ModelSpec, 0, len(entities))
	for _, e := range entities {
		spec, ok := e.(*ModelSpec)
		if !ok {
			return nil, fmt.Errorf("model query returned unexpected type %T", e)
		}
		out = append(out, spec)
	}
	return out, nil
}
