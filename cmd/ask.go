package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/app"
	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/config"
)

var askModel string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "model id overriding the default answering model")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, question string) error {
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

	for update := range a.Orchestrator.Ask(ctx, question, askModel) {
		switch update.Stage {
		case ask.StageStrategy:
			fmt.Printf("Planning %d searches", len(update.Strategy.Searches))
			if update.Strategy.Reasoning != "" {
				fmt.Printf(": %s", update.Strategy.Reasoning)
			}
			fmt.Println()
		case ask.StageBranch:
			fmt.Printf("  · answered %q\n", update.Branch.Term)
		case ask.StageFinal:
			fmt.Println()
			fmt.Println(update.Result.FinalAnswer)
			if len(update.Result.Citations) > 0 {
				fmt.Println()
				fmt.Println("Sources:")
				for _, c := range update.Result.Citations {
					fmt.Printf("  [%d] %s: %s\n", c.Index, c.DocumentID, firstLine(c.Snippet))
				}
			}
		case ask.StageError:
			return fmt.Errorf("answering question: %w", update.Err)
		}
	}
	return nil
}
