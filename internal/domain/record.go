package domain

import (
	"context"
	"fmt"

	"github.com/remindhq/remind/internal/store"
)

// RecordDefaultModels is the record_id of the default-models singleton.
const RecordDefaultModels = "default_models"

// SemanticType names a role a model can play. The router resolves each
// role to a concrete model through the default-models record.
type SemanticType string

const (
	SemanticChat           SemanticType = "chat"
	SemanticTransformation SemanticType = "transformation"
	SemanticTools          SemanticType = "tools"
	SemanticLargeContext   SemanticType = "large_context"
	SemanticEmbedding      SemanticType = "embedding"
	SemanticTextToSpeech   SemanticType = "text_to_speech"
	SemanticSpeechToText   SemanticType = "speech_to_text"
)

// DefaultModels is the singleton-per-key settings record selecting one
// optional model id per semantic role. Empty fields mean "unset"; the
// router applies role-specific fallbacks.
type DefaultModels struct {
	store.Metadata
	RecordID       string `json:"record_id"`
	Chat           string `json:"chat,omitempty"`
	Transformation string `json:"transformation,omitempty"`
	Tools          string `json:"tools,omitempty"`
	LargeContext   string `json:"large_context,omitempty"`
	Embedding      string `json:"embedding,omitempty"`
	TextToSpeech   string `json:"text_to_speech,omitempty"`
	SpeechToText   string `json:"speech_to_text,omitempty"`
}

func (*DefaultModels) Collection() string { return CollectionRecord }

// ForRole returns the configured model id for a semantic role, applying
// the fallback rules: transformation and tools fall back to the chat
// default when unset, every other role returns empty when unset.
func (d *DefaultModels) ForRole(role SemanticType) string {
	switch role {
	case SemanticChat:
		return d.Chat
	case SemanticTransformation:
		if d.Transformation != "" {
			return d.Transformation
		}
		return d.Chat
	case SemanticTools:
		if d.Tools != "" {
			return d.Tools
		}
		return d.Chat
	case SemanticLargeContext:
		return d.LargeContext
	case SemanticEmbedding:
		return d.Embedding
	case SemanticTextToSpeech:
		return d.TextToSpeech
	case SemanticSpeechToText:
		return d.SpeechToText
	}
	return ""
}

// LoadDefaultModels reads the default-models record, returning an empty
// (unsaved) record when none exists yet.
func LoadDefaultModels(ctx context.Context, s *store.Store) (*DefaultModels, error) {
	entities, err := s.Query(ctx, CollectionRecord, map[string]any{"record_id": RecordDefaultModels})
	if err != nil {
		return nil, fmt.Errorf("loading default models: %w", err)
	}
	if len(entities) == 0 {
		return &DefaultModels{RecordID: RecordDefaultModels}, nil
	}
	rec, ok := entities[0].(*DefaultModels)
	if !ok {
		return nil, fmt.Errorf("default models record has unexpected type %T", entities[0])
	}
	return rec, nil
}

// SaveDefaultModels persists the record through an upsert keyed on its
// record_id, then re-reads it so the caller observes exactly what was
// stored (read-your-write).
func SaveDefaultModels(ctx context.Context, s *store.Store, rec *DefaultModels) (*DefaultModels, error) {
	rec.RecordID = RecordDefaultModels
	if err := s.Upsert(ctx, map[string]any{"record_id": RecordDefaultModels}, rec); err != nil {
		return nil, fmt.Errorf("saving default models: %w", err)
	}
	return LoadDefaultModels(ctx, s)
}
