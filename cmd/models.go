package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/app"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/store"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model descriptors and role defaults",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models and the current role defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), runModelsList)
	},
}

var modelsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a model descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runModelsAdd(ctx, a, args[0])
		})
	},
}

var modelsSetDefaultCmd = &cobra.Command{
	Use:   "set-default [role] [model-id]",
	Short: "Bind a semantic role to a model id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runModelsSetDefault(ctx, a, args[0], args[1])
		})
	},
}

var (
	modelProvider string
	modelType     string
)

func init() {
	modelsAddCmd.Flags().StringVar(&modelProvider, "provider", "googleai", "provider serving the model (googleai, ollama, openai)")
	modelsAddCmd.Flags().StringVar(&modelType, "type", "language", "model type (language, vision, embedding, speech-to-text, text-to-speech)")
	modelsCmd.AddCommand(modelsListCmd, modelsAddCmd, modelsSetDefaultCmd)
	rootCmd.AddCommand(modelsCmd)
}

// withApp loads config, builds the application, and tears it down after
// the given function returns.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func runModelsList(ctx context.Context, a *app.App) error {
	entities, err := a.Store.Query(ctx, domain.CollectionModel, nil)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	if len(entities) == 0 {
		fmt.Println("No models registered.")
	}
	for _, e := range entities {
		spec, ok := e.(*domain.ModelSpec)
		if !ok {
			continue
		}
		fmt.Printf("%-50s %-10s %-15s %s\n", spec.ID, spec.Provider, spec.Type, spec.Name)
	}

	defaults, err := domain.LoadDefaultModels(ctx, a.Store)
	if err != nil {
		return fmt.Errorf("loading defaults: %w", err)
	}
	fmt.Println()
	fmt.Println("Role defaults:")
	roles := []struct {
		role domain.SemanticType
		id   string
	}{
		{domain.SemanticChat, defaults.Chat},
		{domain.SemanticTransformation, defaults.Transformation},
		{domain.SemanticTools, defaults.Tools},
		{domain.SemanticLargeContext, defaults.LargeContext},
		{domain.SemanticEmbedding, defaults.Embedding},
		{domain.SemanticTextToSpeech, defaults.TextToSpeech},
		{domain.SemanticSpeechToText, defaults.SpeechToText},
	}
	for _, r := range roles {
		id := r.id
		if id == "" {
			id = "(unset)"
		}
		fmt.Printf("  %-15s %s\n", r.role, id)
	}
	return nil
}

func runModelsAdd(ctx context.Context, a *app.App, name string) error {
	spec := &domain.ModelSpec{
		Name:     name,
		Provider: modelProvider,
		Type:     domain.ModelType(modelType),
	}
	if !spec.Type.Valid() {
		return fmt.Errorf("unknown model type %q", modelType)
	}

	// One descriptor per name; re-adding updates provider and type.
	if err := a.Store.Upsert(ctx, map[string]any{"name": name}, spec); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	fmt.Printf("Registered %s (%s, %s)\n", spec.ID, spec.Provider, spec.Type)
	return nil
}

func runModelsSetDefault(ctx context.Context, a *app.App, role, modelID string) error {
	// The model must exist and parse as a composite id before it becomes
	// a default.
	if _, _, err := store.ParseID(modelID); err != nil {
		return fmt.Errorf("invalid model id %q: %w", modelID, err)
	}
	if _, err := a.Store.Get(ctx, modelID); err != nil {
		return fmt.Errorf("looking up model %q: %w", modelID, err)
	}

	defaults, err := domain.LoadDefaultModels(ctx, a.Store)
	if err != nil {
		return fmt.Errorf("loading defaults: %w", err)
	}

	switch domain.SemanticType(role) {
	case domain.SemanticChat:
		defaults.Chat = modelID
	case domain.SemanticTransformation:
		defaults.Transformation = modelID
	case domain.SemanticTools:
		defaults.Tools = modelID
	case domain.SemanticLargeContext:
		defaults.LargeContext = modelID
	case domain.SemanticEmbedding:
		defaults.Embedding = modelID
	case domain.SemanticTextToSpeech:
		defaults.TextToSpeech = modelID
	case domain.SemanticSpeechToText:
		defaults.SpeechToText = modelID
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	if _, err := domain.SaveDefaultModels(ctx, a.Store, defaults); err != nil {
		return fmt.Errorf("saving defaults: %w", err)
	}

	// Cached handles may now point at stale defaults.
	a.Router.ClearCache()

	fmt.Printf("Default for %s set to %s\n", role, modelID)
	return nil
}
