package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/app"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/search"
)

var (
	searchK        int
	searchMinScore float64
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Run a similarity search across notes and insights",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchK, "k", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", -1, "similarity threshold (default: built-in)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, term string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	hits, err := a.Merger.Search(ctx, term, searchK, search.AllKinds(), searchMinScore)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, hit := range hits {
		fmt.Printf("%2d. [%s] %.3f %s\n", i+1, hit.Kind, hit.Score, hit.Entity.Meta().ID)
		fmt.Printf("    %s\n", firstLine(hitContent(hit)))
	}
	return nil
}

func hitContent(hit search.Hit) string {
	switch doc := hit.Entity.(type) {
	case *domain.Chunk:
		return doc.Content
	case *domain.Insight:
		return doc.Content
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxRunes = 120
	if runes := []rune(s); len(runes) > maxRunes {
		s = string(runes[:maxRunes]) + "…"
	}
	return s
}
