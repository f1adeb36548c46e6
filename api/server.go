// Package api exposes the knowledge base over HTTP: source ingestion,
// similarity search, and the streaming ask pipeline.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remindhq/remind/internal/ask"
	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/search"
)

// Ingestor persists a source and vectorizes its text.
type Ingestor interface {
	Ingest(ctx context.Context, src *domain.Source) (int, error)
}

// Searcher runs merged similarity searches.
type Searcher interface {
	Search(ctx context.Context, term string, k int, kinds search.Kinds, minScore float64) ([]search.Hit, error)
}

// Asker answers a question, streaming progress updates.
type Asker interface {
	Ask(ctx context.Context, question, modelID string) <-chan ask.Update
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Ingestor Ingestor      // Required
	Searcher Searcher      // Required
	Asker    Asker         // Required
	Pool     *pgxpool.Pool // Optional: nil disables database ping in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Asker == nil {
		return nil, errors.New("asker is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ih := &ingestHandler{ingestor: cfg.Ingestor, logger: logger}
	sh := &searchHandler{searcher: cfg.Searcher, logger: logger}
	ah := &askHandler{asker: cfg.Asker, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", ih.ingest)
	mux.HandleFunc("GET /api/search", sh.search)
	mux.HandleFunc("POST /api/ask", ah.ask)

	// Middleware stack (outermost first): Recovery → Logging → Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
