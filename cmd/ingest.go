package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/app"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/domain"
)

var (
	ingestTitle  string
	ingestTopics []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Store a text file as a source and vectorize it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "source title (defaults to the file name)")
	ingestCmd.Flags().StringSliceVar(&ingestTopics, "topics", nil, "comma-separated topics")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	title := ingestTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	src := &domain.Source{
		Title:    title,
		Topics:   ingestTopics,
		FullText: string(content),
		Asset:    path,
	}
	chunks, err := a.Vectorizer.Ingest(ctx, src)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Printf("Ingested %s as %s (%d chunks)\n", path, src.ID, chunks)
	return nil
}
