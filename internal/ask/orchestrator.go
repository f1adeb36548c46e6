package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/model"
	"github.com/remindhq/remind/internal/search"
	"github.com/remindhq/remind/internal/store"
)

// Orchestrator runs the fan-out/fan-in answer pipeline:
// strategize, dispatch one branch per planned search, synthesize after
// all branches join, then rewrite citations.
//
// Branch failures are contained: a failing sub-search degrades to an
// empty contribution. Strategize and synthesize failures are fatal to
// the question, as is cancellation at any point.
//
// Every stage resolves the tools role, which falls back to the chat
// default when no tools default is configured.
type Orchestrator struct {
	searcher Searcher
	models   ModelResolver
	docs     DocResolver
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(searcher Searcher, models ModelResolver, docs DocResolver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{searcher: searcher, models: models, docs: docs, logger: logger}
}

// Ask answers a question, streaming progress updates. The returned
// channel is closed after a terminal StageFinal or StageError update.
// modelID optionally overrides the tools default. Cancel ctx to abandon
// the question; completed branch answers are then discarded, never
// partially merged.
func (o *Orchestrator) Ask(ctx context.Context, question, modelID string) <-chan Update {
	// Buffered to hold every event a question can produce (one strategy,
	// up to maxSearches branches, one terminal), so the pipeline never
	// blocks on a slow or departed consumer.
	updates := make(chan Update, maxSearches+3)
	go func() {
		defer close(updates)
		o.run(ctx, question, modelID, updates)
	}()
	return updates
}

func (o *Orchestrator) run(ctx context.Context, question, modelID string, updates chan<- Update) {
	emit := func(u Update) {
		updates <- u
	}
	fail := func(err error) {
		o.logger.Warn("question failed", "error", err)
		emit(Update{Stage: StageError, Err: err})
	}

	question = strings.TrimSpace(question)
	if question == "" {
		fail(fmt.Errorf("%w: empty question", errs.ErrInvalidInput))
		return
	}

	// Strategize
	strategy, err := o.strategize(ctx, question, modelID)
	if err != nil {
		fail(err)
		return
	}
	emit(Update{Stage: StageStrategy, Strategy: strategy})

	// Dispatch: one branch per planned search. Answers accumulate in
	// completion order; ordering carries no meaning downstream.
	var (
		mu      sync.Mutex
		answers []BranchAnswer
	)
	g, branchCtx := errgroup.WithContext(ctx)
	for _, planned := range strategy.Searches {
		g.Go(func() error {
			answer, ok := o.answerBranch(branchCtx, question, modelID, planned)
			if !ok {
				return branchCtx.Err()
			}
			mu.Lock()
			answers = append(answers, answer)
			mu.Unlock()
			emit(Update{Stage: StageBranch, Branch: &answer})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fail(err)
		return
	}
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	// Synthesize
	finalAnswer, err := o.synthesize(ctx, question, modelID, answers)
	if err != nil {
		fail(err)
		return
	}

	// Rewrite
	finalText, branchTexts, citations := rewriteCitations(ctx, o.docs, finalAnswer, answers, o.logger)

	emit(Update{Stage: StageFinal, Result: &Result{
		FinalAnswer:   finalText,
		BranchAnswers: branchTexts,
		Citations:     citations,
	}})
}

// strategize plans the sub-searches with one structured model call.
// A parse failure is fatal for the whole question and is not retried.
func (o *Orchestrator) strategize(ctx context.Context, question, modelID string) (*Strategy, error) {
	prompt, err := renderStrategyPrompt(question)
	if err != nil {
		return nil, err
	}

	handle, err := o.models.Resolve(ctx, modelID, domain.SemanticTools, prompt, model.Options{})
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.Language == nil {
		return nil, fmt.Errorf("%w: no language model configured", errs.ErrNotFound)
	}

	var strategy Strategy
	if err := handle.Language.GenerateInto(ctx, prompt, &strategy); err != nil {
		return nil, fmt.Errorf("planning searches: %w", err)
	}

	if len(strategy.Searches) > maxSearches {
		o.logger.Warn("strategy exceeded search budget, truncating",
			"planned", len(strategy.Searches), "max", maxSearches)
		strategy.Searches = strategy.Searches[:maxSearches]
	}
	return &strategy, nil
}

// answerBranch retrieves and answers one planned search. Failures are
// contained: the branch reports no contribution and the question
// continues. ok is false when the branch contributed nothing.
func (o *Orchestrator) answerBranch(ctx context.Context, question, modelID string, planned Search) (BranchAnswer, bool) {
	hits, err := o.searcher.Search(ctx, planned.Term, branchK, search.AllKinds(), -1)
	if err != nil {
		o.logger.Warn("branch retrieval failed", "term", planned.Term, "error", err)
		return BranchAnswer{}, false
	}
	if len(hits) == 0 {
		o.logger.Debug("branch retrieval empty", "term", planned.Term)
		return BranchAnswer{}, false
	}

	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		tag, content, err := referenceTag(hit)
		if err != nil {
			o.logger.Warn("skipping untaggable hit", "error", err)
			continue
		}
		snippets = append(snippets, fmt.Sprintf("[%s] %s", tag, content))
	}
	if len(snippets) == 0 {
		return BranchAnswer{}, false
	}

	prompt, err := renderBranchPrompt(question, planned.Instructions, snippets)
	if err != nil {
		o.logger.Warn("branch prompt failed", "term", planned.Term, "error", err)
		return BranchAnswer{}, false
	}

	handle, err := o.models.Resolve(ctx, modelID, domain.SemanticTools, prompt, model.Options{})
	if err != nil || handle == nil || handle.Language == nil {
		o.logger.Warn("branch model resolution failed", "term", planned.Term, "error", err)
		return BranchAnswer{}, false
	}

	answerText, err := handle.Language.Generate(ctx, prompt)
	if err != nil {
		o.logger.Warn("branch answer failed", "term", planned.Term, "error", err)
		return BranchAnswer{}, false
	}
	return BranchAnswer{Term: planned.Term, Text: answerText}, true
}

// synthesize merges all branch answers with one model call. The answer
// still carries raw citation tags afterwards.
func (o *Orchestrator) synthesize(ctx context.Context, question, modelID string, answers []BranchAnswer) (string, error) {
	texts := make([]string, 0, len(answers))
	for _, answer := range answers {
		texts = append(texts, answer.Text)
	}

	prompt, err := renderSynthesisPrompt(question, texts)
	if err != nil {
		return "", err
	}

	handle, err := o.models.Resolve(ctx, modelID, domain.SemanticTools, prompt, model.Options{})
	if err != nil {
		return "", err
	}
	if handle == nil || handle.Language == nil {
		return "", fmt.Errorf("%w: no language model configured", errs.ErrNotFound)
	}

	finalAnswer, err := handle.Language.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesizing answer: %w", err)
	}
	return finalAnswer, nil
}

// referenceTag builds the inline citation tag and display content of a
// retrieved hit. The tag id is the key half of the composite id; the
// kind already names the collection.
func referenceTag(hit search.Hit) (tag, content string, err error) {
	_, key, err := store.ParseID(hit.Entity.Meta().ID)
	if err != nil {
		return "", "", err
	}
	embeddable, ok := hit.Entity.(store.Embeddable)
	if !ok {
		return "", "", fmt.Errorf("%w: hit %q has no text content", errs.ErrInvalidInput, hit.Entity.Meta().ID)
	}
	return string(hit.Kind) + ":" + key.String(), embeddable.EmbeddingText(), nil
}
