package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/remindhq/remind/db"
	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/database"
	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/ingest"
	"github.com/remindhq/remind/internal/model"
	"github.com/remindhq/remind/internal/search"
	"github.com/remindhq/remind/internal/store"
)

// Setup creates and initializes the application. The returned App holds
// every component; call Close to release them. On failure everything
// already initialized is torn down.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.Pool = pool

	a.Registry = store.NewRegistry()
	domain.RegisterTypes(a.Registry)

	// The store's embedder is routed through the model layer, which in
	// turn reads model descriptors from the store. Break the cycle by
	// wiring the embedder after both exist.
	a.Store = store.New(pool, a.Registry, nil, logger.With("component", "store"))

	g, err := setupGenkit(ctx, cfg, a.Store, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	provider := model.NewGenkitProvider(g)
	a.Router = model.NewRouter(a.Store, provider, logger.With("component", "router"))
	a.Store.SetEmbedder(model.NewRouterEmbedder(a.Router))

	a.Vectorizer = ingest.New(a.Store, cfg.ChunkTokens, cfg.Workers,
		logger.With("component", "ingest"))
	a.Merger = search.New(a.Store, model.NewRouterEmbedder(a.Router),
		logger.With("component", "search"))
	a.Orchestrator = ask.New(a.Merger, a.Router, a.Store,
		logger.With("component", "ask"))

	return a, nil
}

// setupGenkit initializes Genkit with the configured provider plugin.
// Ollama has no model auto-discovery, so every descriptor stored for it
// is registered explicitly.
func setupGenkit(ctx context.Context, cfg *config.Config, s *store.Store, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		if err := registerOllamaModels(ctx, g, plugin, cfg, s); err != nil {
			return nil, err
		}
		logger.Info("initialized genkit", "provider", cfg.Provider, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit", "provider", cfg.Provider)
		return g, nil

	default: // googleai
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit", "provider", config.ProviderGoogleAI)
		return g, nil
	}
}

// registerOllamaModels defines every stored ollama model descriptor on
// the plugin. Descriptors for other providers are ignored.
func registerOllamaModels(ctx context.Context, g *genkit.Genkit, plugin *ollama.Ollama, cfg *config.Config, s *store.Store) error {
	entities, err := s.Query(ctx, domain.CollectionModel, nil)
	if err != nil {
		return fmt.Errorf("loading model descriptors: %w", err)
	}

	for _, e := range entities {
		spec, ok := e.(*domain.ModelSpec)
		if !ok || spec.Provider != model.ProviderOllama {
			continue
		}
		switch spec.Type {
		case domain.ModelTypeLanguage, domain.ModelTypeVision:
			plugin.DefineModel(g, ollama.ModelDefinition{Name: spec.Name, Type: "chat"}, nil)
		case domain.ModelTypeEmbedding:
			plugin.DefineEmbedder(g, cfg.OllamaHost, spec.Name, nil)
		}
	}
	return nil
}
