package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/app"
	"github.com/remindhq/remind/internal/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage ingested sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), runSourcesList)
	},
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a source and everything derived from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runSourcesDelete(ctx, a, args[0])
		})
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesDeleteCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(ctx context.Context, a *app.App) error {
	entities, err := a.Store.Query(ctx, domain.CollectionSource, nil)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	if len(entities) == 0 {
		fmt.Println("No sources.")
		return nil
	}
	for _, e := range entities {
		src, ok := e.(*domain.Source)
		if !ok {
			continue
		}
		chunks, err := a.Store.Count(ctx, domain.CollectionChunk, map[string]any{"source_id": src.ID})
		if err != nil {
			return fmt.Errorf("counting chunks of %s: %w", src.ID, err)
		}
		fmt.Printf("%-50s %4d chunks  %s\n", src.ID, chunks, src.Title)
	}
	return nil
}

func runSourcesDelete(ctx context.Context, a *app.App, id string) error {
	deleted, err := domain.DeleteSourceCascade(ctx, a.Store, id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if !deleted {
		fmt.Printf("Source %s not found.\n", id)
		return nil
	}
	fmt.Printf("Deleted %s and its derived records.\n", id)
	return nil
}
