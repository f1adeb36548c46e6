package ask

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/store"
)

// citationTagRE matches the inline citation wire format [kind:id].
var citationTagRE = regexp.MustCompile(`\[(note|insight|source):([A-Za-z0-9_-]+)\]`)

// snippetRunes caps how much of a resolved document appears in the
// bibliography.
const snippetRunes = 280

// tagCollections maps tag kinds to the collections their ids live in.
var tagCollections = map[string]string{
	"note":    domain.CollectionChunk,
	"insight": domain.CollectionInsight,
	"source":  domain.CollectionSource,
}

// rewriteCitations replaces every [kind:id] tag in the final answer (and,
// for display purposes, in the branch answers) with a bracketed number
// assigned in first-occurrence order over the final answer. Tags whose
// document cannot be resolved are silently removed and not cited. Tags
// appearing only in branch answers were never numbered and stay as they
// are.
//
// The numbering depends only on the final answer text, never on branch
// completion order. Running the rewrite again on its own output changes
// nothing: numbered brackets do not match the tag pattern.
func rewriteCitations(ctx context.Context, docs DocResolver, finalAnswer string, branches []BranchAnswer, logger *slog.Logger) (string, []BranchAnswer, []Citation) {
	matches := citationTagRE.FindAllStringSubmatch(finalAnswer, -1)

	replacements := make(map[string]string) // raw tag -> replacement text
	var citations []Citation
	for _, match := range matches {
		raw, kind, id := match[0], match[1], match[2]
		if _, seen := replacements[raw]; seen {
			continue
		}

		docID := tagCollections[kind] + ":" + id
		entity, err := docs.Get(ctx, docID)
		if err != nil {
			logger.Warn("dropping unresolvable citation", "tag", raw, "error", err)
			replacements[raw] = ""
			continue
		}

		index := len(citations) + 1
		replacements[raw] = fmt.Sprintf("[%d]", index)
		citations = append(citations, Citation{
			Index:      index,
			DocumentID: docID,
			Snippet:    snippet(entity),
		})
	}

	apply := func(s string) string {
		return citationTagRE.ReplaceAllStringFunc(s, func(raw string) string {
			if repl, ok := replacements[raw]; ok {
				return repl
			}
			// Only tags the final answer numbered (or dropped) are
			// rewritten; a branch-only tag keeps its raw form.
			return raw
		})
	}

	rewritten := make([]BranchAnswer, len(branches))
	for i, branch := range branches {
		rewritten[i] = BranchAnswer{Term: branch.Term, Text: apply(branch.Text)}
	}
	return apply(finalAnswer), rewritten, citations
}

// snippet extracts the display text of a resolved document.
func snippet(e store.Entity) string {
	var s string
	switch doc := e.(type) {
	case *domain.Chunk:
		s = doc.Content
	case *domain.Insight:
		s = doc.Content
	case *domain.Source:
		s = doc.Title
	default:
		s = e.Meta().ID
	}
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > snippetRunes {
		s = string(runes[:snippetRunes]) + "…"
	}
	return s
}
