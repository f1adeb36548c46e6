// Package ask implements the question-answering pipeline: plan searches,
// answer them in parallel against the retrieval layer, synthesize a final
// answer, and rewrite inline citation tags into a numbered bibliography.
package ask

import (
	"context"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/model"
	"github.com/remindhq/remind/internal/search"
	"github.com/remindhq/remind/internal/store"
)

// maxSearches bounds how many sub-searches one strategy may dispatch.
const maxSearches = 5

// branchK is the retrieval depth of each search branch.
const branchK = 10

// Strategy is the structured output of the planning stage.
type Strategy struct {
	Reasoning string   `json:"reasoning"`
	Searches  []Search `json:"searches"`
}

// Search is one planned sub-query.
type Search struct {
	Term         string `json:"term"`
	Instructions string `json:"instructions"`
}

// BranchAnswer is the output of one search branch. Text still carries raw
// citation tags until the rewrite stage replaces them.
type BranchAnswer struct {
	Term string `json:"term"`
	Text string `json:"text"`
}

// Citation is one entry of the final bibliography.
type Citation struct {
	Index      int    `json:"index"`
	DocumentID string `json:"document_id"`
	Snippet    string `json:"snippet"`
}

// Result is the terminal payload of a successful question.
type Result struct {
	FinalAnswer   string         `json:"final_answer"`
	BranchAnswers []BranchAnswer `json:"branch_answers"`
	Citations     []Citation     `json:"citations"`
}

// Stage identifies a progress update in the answer stream.
type Stage string

const (
	StageStrategy Stage = "strategy"
	StageBranch   Stage = "branch"
	StageFinal    Stage = "final"
	StageError    Stage = "error"
)

// Update is one event of the progressively-updating answer stream. The
// field matching Stage is set; a StageFinal or StageError update is
// always the last one.
type Update struct {
	Stage    Stage
	Strategy *Strategy
	Branch   *BranchAnswer
	Result   *Result
	Err      error
}

// Searcher is the retrieval capability the orchestrator consumes.
type Searcher interface {
	Search(ctx context.Context, term string, k int, kinds search.Kinds, minScore float64) ([]search.Hit, error)
}

// ModelResolver picks language models per stage.
type ModelResolver interface {
	Resolve(ctx context.Context, id string, role domain.SemanticType, prompt string, opts model.Options) (*model.Handle, error)
}

// DocResolver resolves composite ids during citation rewriting.
type DocResolver interface {
	Get(ctx context.Context, id string) (store.Entity, error)
}
