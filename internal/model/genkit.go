package model

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
)

// Provider names accepted in model descriptors. They match the Genkit
// plugin prefixes, so the qualified model name is "<provider>/<name>".
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
)

func knownProvider(p string) bool {
	switch p {
	case ProviderGoogleAI, ProviderOllama, ProviderOpenAI:
		return true
	}
	return false
}

// GenkitProvider constructs model instances on top of a Genkit runtime.
// The plugins for every supported provider are registered during startup
// wiring, so construction here is just name qualification.
type GenkitProvider struct {
	g *genkit.Genkit
}

// NewGenkitProvider creates a provider backed by an initialized Genkit
// instance.
func NewGenkitProvider(g *genkit.Genkit) *GenkitProvider {
	return &GenkitProvider{g: g}
}

// Language constructs a language model for the descriptor. Vision models
// share the language path; their extra capability lives provider-side.
func (p *GenkitProvider) Language(spec *domain.ModelSpec, opts Options) (LanguageModel, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	switch spec.Type {
	case domain.ModelTypeLanguage, domain.ModelTypeVision:
	default:
		return nil, fmt.Errorf("%w: model %q has type %q, want a language model",
			errs.ErrInvalidInput, spec.Name, spec.Type)
	}
	return &genkitLanguageModel{
		g:    p.g,
		name: spec.Provider + "/" + spec.Name,
		opts: opts,
	}, nil
}

// Embedding constructs an embedding model for the descriptor.
func (p *GenkitProvider) Embedding(spec *domain.ModelSpec) (EmbeddingModel, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	if spec.Type != domain.ModelTypeEmbedding {
		return nil, fmt.Errorf("%w: model %q has type %q, want an embedding model",
			errs.ErrInvalidInput, spec.Name, spec.Type)
	}
	embedder := genkit.LookupEmbedder(p.g, api.NewName(spec.Provider, spec.Name))
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder %s/%s is not registered",
			errs.ErrNotFound, spec.Provider, spec.Name)
	}
	return &genkitEmbeddingModel{embedder: embedder}, nil
}

func validateSpec(spec *domain.ModelSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: model descriptor has empty name", errs.ErrInvalidInput)
	}
	if !spec.Type.Valid() {
		return fmt.Errorf("%w: unknown model type %q", errs.ErrInvalidInput, spec.Type)
	}
	if !knownProvider(spec.Provider) {
		return fmt.Errorf("%w: unknown provider %q for model %q",
			errs.ErrInvalidInput, spec.Provider, spec.Name)
	}
	return nil
}

type genkitLanguageModel struct {
	g    *genkit.Genkit
	name string
	opts Options
}

func (m *genkitLanguageModel) generateOpts(prompt string, extra ...ai.GenerateOption) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithModelName(m.name),
		ai.WithPrompt(prompt),
	}
	cfg := map[string]any{}
	if m.opts.Temperature > 0 {
		cfg["temperature"] = m.opts.Temperature
	}
	if m.opts.MaxTokens > 0 {
		cfg["maxOutputTokens"] = m.opts.MaxTokens
	}
	if len(cfg) > 0 {
		opts = append(opts, ai.WithConfig(cfg))
	}
	return append(opts, extra...)
}

func (m *genkitLanguageModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, m.g, m.generateOpts(prompt)...)
	if err != nil {
		return "", fmt.Errorf("%w: generating with %s: %v", errs.ErrExternal, m.name, err)
	}
	return resp.Text(), nil
}

func (m *genkitLanguageModel) GenerateInto(ctx context.Context, prompt string, out any) error {
	resp, err := genkit.Generate(ctx, m.g, m.generateOpts(prompt, ai.WithOutputType(out))...)
	if err != nil {
		return fmt.Errorf("%w: generating with %s: %v", errs.ErrExternal, m.name, err)
	}
	if err := resp.Output(out); err != nil {
		return fmt.Errorf("%w: decoding structured output from %s: %v", errs.ErrExternal, m.name, err)
	}
	return nil
}

type genkitEmbeddingModel struct {
	embedder ai.Embedder
}

func (m *genkitEmbeddingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", errs.ErrExternal, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", errs.ErrExternal)
	}
	return resp.Embeddings[0].Embedding, nil
}
