// Package model resolves persisted model descriptors into live, cached
// model instances, including the semantic-default and large-context
// routing rules.
package model

import "context"

// LanguageModel is the capability the answer pipeline consumes: plain
// text generation plus an optional structured mode that decodes the
// response into a typed value.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateInto(ctx context.Context, prompt string, out any) error
}

// EmbeddingModel turns text into a fixed-length vector.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes a constructed model instance. The zero value means
// provider defaults. Options participate in the instance cache key, so
// the struct must stay comparable.
type Options struct {
	Temperature float32
	MaxTokens   int
}
