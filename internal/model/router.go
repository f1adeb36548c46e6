package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/store"
	"github.com/remindhq/remind/internal/text"
)

// LargeContextTokenCeiling is the estimated prompt size above which
// resolution routes to the large-context default regardless of the
// requested model.
const LargeContextTokenCeiling = 105_000

// Handle is a resolved model: its persisted descriptor plus whichever
// capability interface matches the descriptor's type.
type Handle struct {
	Spec      *domain.ModelSpec
	Language  LanguageModel
	Embedding EmbeddingModel
}

// Provider constructs live instances from descriptors. GenkitProvider is
// the production implementation; tests inject fakes.
type Provider interface {
	Language(spec *domain.ModelSpec, opts Options) (LanguageModel, error)
	Embedding(spec *domain.ModelSpec) (EmbeddingModel, error)
}

// DocStore is the slice of the document store the router needs.
type DocStore interface {
	Get(ctx context.Context, id string) (store.Entity, error)
	Query(ctx context.Context, collection string, filter map[string]any) ([]store.Entity, error)
}

type cacheKey struct {
	id   string
	opts Options
}

// Router resolves model ids and semantic roles to live instances.
//
// Instances are cached for the router's lifetime, keyed by (id, options).
// The cache and the defaults snapshot are invalidated together with
// ClearCache whenever a descriptor or the defaults record changes.
type Router struct {
	store    DocStore
	provider Provider
	logger   *slog.Logger

	mu       sync.Mutex
	cache    map[cacheKey]*Handle
	defaults *domain.DefaultModels
}

// NewRouter creates a Router.
func NewRouter(s DocStore, provider Provider, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:    s,
		provider: provider,
		logger:   logger,
		cache:    make(map[cacheKey]*Handle),
	}
}

// Get resolves a model id to a live instance, constructing and caching it
// on first use. It fails with ErrInvalidInput for an empty id or an
// unconstructible descriptor, and ErrNotFound for a missing one.
func (r *Router) Get(ctx context.Context, id string, opts Options) (*Handle, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty model id", errs.ErrInvalidInput)
	}

	key := cacheKey{id: id, opts: opts}
	r.mu.Lock()
	if handle, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return handle, nil
	}
	r.mu.Unlock()

	entity, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving model %q: %w", id, err)
	}
	spec, ok := entity.(*domain.ModelSpec)
	if !ok {
		return nil, fmt.Errorf("%w: id %q is not a model descriptor", errs.ErrInvalidInput, id)
	}

	handle := &Handle{Spec: spec}
	switch spec.Type {
	case domain.ModelTypeLanguage, domain.ModelTypeVision:
		handle.Language, err = r.provider.Language(spec, opts)
	case domain.ModelTypeEmbedding:
		handle.Embedding, err = r.provider.Embedding(spec)
	case domain.ModelTypeSpeechToText, domain.ModelTypeTextToSpeech:
		err = fmt.Errorf("%w: model type %q has no construction path for provider %q",
			errs.ErrInvalidInput, spec.Type, spec.Provider)
	default:
		err = fmt.Errorf("%w: unknown model type %q", errs.ErrInvalidInput, spec.Type)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// A concurrent caller may have won the construction race; keep the
	// first cached instance so every caller shares one.
	if cached, ok := r.cache[key]; ok {
		handle = cached
	} else {
		r.cache[key] = handle
	}
	r.mu.Unlock()

	r.logger.Debug("constructed model instance", "id", id, "type", spec.Type)
	return handle, nil
}

// Resolve picks a model for a request. A prompt estimated above the
// large-context ceiling routes to the large-context default regardless
// of the explicit id; when that default is unset the resolution is
// (nil, nil) like any other unset role. Otherwise an explicit id wins;
// with no id, the semantic default for role applies (transformation and
// tools fall back to chat). An unset default resolves to (nil, nil),
// not an error.
func (r *Router) Resolve(ctx context.Context, id string, role domain.SemanticType, prompt string, opts Options) (*Handle, error) {
	if tokens := text.EstimateTokens(prompt); tokens > LargeContextTokenCeiling {
		defaults, err := r.loadDefaults(ctx)
		if err != nil {
			return nil, err
		}
		large := defaults.ForRole(domain.SemanticLargeContext)
		if large == "" {
			r.logger.Warn("prompt exceeds context ceiling and no large-context default is set",
				"estimated_tokens", tokens)
			return nil, nil
		}
		r.logger.Debug("routing to large-context model", "estimated_tokens", tokens)
		return r.Get(ctx, large, opts)
	}

	if id != "" {
		return r.Get(ctx, id, opts)
	}

	defaults, err := r.loadDefaults(ctx)
	if err != nil {
		return nil, err
	}
	defaultID := defaults.ForRole(role)
	if defaultID == "" {
		return nil, nil
	}
	return r.Get(ctx, defaultID, opts)
}

// RefreshDefaults discards the cached defaults snapshot and reloads it
// from the store.
func (r *Router) RefreshDefaults(ctx context.Context) error {
	r.mu.Lock()
	r.defaults = nil
	r.mu.Unlock()
	_, err := r.loadDefaults(ctx)
	return err
}

// ClearCache drops every cached instance and the defaults snapshot. Call
// after changing a model descriptor or the defaults record.
func (r *Router) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[cacheKey]*Handle)
	r.defaults = nil
	r.mu.Unlock()
	r.logger.Debug("model cache cleared")
}

// loadDefaults returns the cached defaults record, reading it from the
// store on first use. A missing record behaves as all-unset defaults.
func (r *Router) loadDefaults(ctx context.Context) (*domain.DefaultModels, error) {
	r.mu.Lock()
	if r.defaults != nil {
		defer r.mu.Unlock()
		return r.defaults, nil
	}
	r.mu.Unlock()

	entities, err := r.store.Query(ctx, domain.CollectionRecord,
		map[string]any{"record_id": domain.RecordDefaultModels})
	if err != nil {
		return nil, fmt.Errorf("loading default models: %w", err)
	}

	defaults := &domain.DefaultModels{RecordID: domain.RecordDefaultModels}
	if len(entities) > 0 {
		if rec, ok := entities[0].(*domain.DefaultModels); ok {
			defaults = rec
		}
	}

	r.mu.Lock()
	r.defaults = defaults
	r.mu.Unlock()
	return defaults, nil
}
