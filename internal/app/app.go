// Package app wires the application together: configuration, database,
// document store, model routing, and the pipelines built on them.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/ingest"
	"github.com/remindhq/remind/internal/model"
	"github.com/remindhq/remind/internal/search"
	"github.com/remindhq/remind/internal/store"
)

// App is the application container. Every long-lived component is built
// once during Setup and shared from here.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Registry     *store.Registry
	Store        *store.Store
	Router       *model.Router
	Vectorizer   *ingest.Vectorizer
	Merger       *search.Merger
	Orchestrator *ask.Orchestrator
}

// Close releases held resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
