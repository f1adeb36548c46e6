package ask

import (
	"fmt"
	"strings"
	"text/template"
)

var strategyTmpl = template.Must(template.New("strategy").Parse(
	`You are planning how to answer a question from a personal knowledge base.

Question:
{{.Question}}

Decide which similarity searches would surface the material needed to
answer it. Produce between 0 and 5 searches. Each search has a short
"term" to embed and "instructions" describing what the sub-answer should
extract. If the question needs no retrieval, return zero searches.

Explain your plan briefly in "reasoning".`))

var branchTmpl = template.Must(template.New("branch").Parse(
	`Answer one aspect of a question using only the snippets below.

Question:
{{.Question}}

Instructions for this aspect:
{{.Instructions}}

Snippets (each starts with its reference tag):
{{.Snippets}}

Write a concise answer grounded in the snippets. Whenever you use a
snippet, keep its reference tag, e.g. [note:abc], inline next to the
claim it supports. Do not invent tags. If the snippets are irrelevant,
say so briefly.`))

var synthesisTmpl = template.Must(template.New("synthesis").Parse(
	`Combine the partial answers below into one final answer.

Question:
{{.Question}}

Partial answers:
{{.Answers}}

Write a single coherent answer. Preserve every reference tag, e.g.
[note:abc] or [insight:def], exactly where the supported claim appears.
If the partial answers are empty or irrelevant, say the knowledge base
has no material on the question.`))

func renderStrategyPrompt(question string) (string, error) {
	return render(strategyTmpl, struct{ Question string }{question})
}

func renderBranchPrompt(question, instructions string, snippets []string) (string, error) {
	return render(branchTmpl, struct {
		Question     string
		Instructions string
		Snippets     string
	}{question, instructions, strings.Join(snippets, "\n\n")})
}

func renderSynthesisPrompt(question string, answers []string) (string, error) {
	return render(synthesisTmpl, struct {
		Question string
		Answers  string
	}{question, strings.Join(answers, "\n\n---\n\n")})
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
