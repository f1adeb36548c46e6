package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/remindhq/remind/internal/errs"
)

// Embedder generates a fixed-length vector for a piece of text. The store
// consumes it on the save path for Embeddable entities; the concrete
// implementation is supplied by the model router.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoEmbedder signals that no embedding model is currently configured.
// The store treats it as a degraded condition, not a failure: the entity
// is persisted without an embedding and excluded from similarity search.
var ErrNoEmbedder = errors.New("no embedding model configured")

// overFetchFactor sizes the approximate-search candidate pool relative to
// the requested result count.
const overFetchFactor = 15

// maxEFSearch is the hnsw.ef_search ceiling enforced by pgvector.
const maxEFSearch = 1000

// Hit is one similarity-search result: the resolved entity and its cosine
// similarity to the query vector, in [0, 1] for normalized embeddings.
type Hit struct {
	Entity     Entity
	Similarity float64
}

// Store persists entities as JSONB documents in per-collection tables,
// with an optional embedding column powering similarity search.
//
// Every operation acquires a pooled connection scoped to the call and
// releases it on all exit paths. Backend failures are logged with their
// operation context and surfaced wrapped in errs.ErrDatabase; callers
// never see raw pgx errors.
type Store struct {
	pool     *pgxpool.Pool
	registry *Registry
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store. embedder may be nil when no embedding model is
// available; Embeddable entities are then saved unembedded with a warning.
func New(pool *pgxpool.Pool, registry *Registry, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:     pool,
		registry: registry,
		embedder: embedder,
		logger:   logger,
	}
}

// SetEmbedder swaps the embedding provider. Call during startup wiring
// only; the store does not synchronize against in-flight saves.
func (s *Store) SetEmbedder(e Embedder) { s.embedder = e }

// Save persists the entity: an insert when it has no id yet, otherwise an
// update of the existing row. For Embeddable entities with non-empty
// content, the configured Embedder is invoked and the resulting vector is
// stored alongside the document, and a similarity index of the matching
// dimensionality is ensured for the collection.
//
// After the write, the entity is repopulated from the persisted row so the
// caller observes server-assigned fields (id, timestamps) immediately.
func (s *Store) Save(ctx context.Context, e Entity) error {
	collection := e.Collection()
	if _, err := s.registry.Resolve(collection); err != nil {
		return err
	}

	embedding, err := s.embed(ctx, e)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshaling %s document: %v", errs.ErrInvalidInput, collection, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.dbErr("save", collection, err)
	}
	defer conn.Release()

	var (
		key                  uuid.UUID
		persisted            []byte
		createdAt, updatedAt time.Time
	)

	if !e.Meta().Saved() {
		row := conn.QueryRow(ctx, fmt.Sprintf(
			`INSERT INTO %s (data, embedding) VALUES ($1, $2)
			 RETURNING id, data, created_at, updated_at`, collection),
			data, embedding)
		if err := row.Scan(&key, &persisted, &createdAt, &updatedAt); err != nil {
			return s.dbErr("save", collection, err)
		}
	} else {
		idCollection, idKey, err := ParseID(e.Meta().ID)
		if err != nil {
			return err
		}
		if idCollection != collection {
			return fmt.Errorf("%w: id %q does not belong to collection %q",
				errs.ErrInvalidInput, e.Meta().ID, collection)
		}
		row := conn.QueryRow(ctx, fmt.Sprintf(
			`UPDATE %s SET data = $1, embedding = $2, updated_at = now()
			 WHERE id = $3
			 RETURNING id, data, created_at, updated_at`, collection),
			data, embedding, idKey)
		if err := row.Scan(&key, &persisted, &createdAt, &updatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: document %q", errs.ErrNotFound, e.Meta().ID)
			}
			return s.dbErr("save", collection, err)
		}
	}

	if err := scanInto(e, collection, key, persisted, createdAt, updatedAt); err != nil {
		return err
	}

	// A successful embedded write implies the collection needs a similarity
	// index of this dimensionality. Creation is idempotent, so a race
	// between two savers is benign.
	if embedding != nil {
		if err := s.EnsureVectorIndex(ctx, collection, len(embedding.Slice())); err != nil {
			return err
		}
	}

	s.logger.Debug("saved document", "id", e.Meta().ID, "embedded", embedding != nil)
	return nil
}

// Get resolves a composite id to a freshly constructed entity of the
// collection's registered type. It fails with ErrNotFound when either the
// collection is unregistered or the row is absent.
func (s *Store) Get(ctx context.Context, id string) (Entity, error) {
	collection, key, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	construct, err := s.registry.Resolve(collection)
	if err != nil {
		return nil, err
	}

	e := construct()
	if err := s.fetch(ctx, e, collection, key); err != nil {
		return nil, err
	}
	return e, nil
}

// Load populates an existing entity from the row addressed by id. The
// entity's declared collection must match the collection encoded in the
// id, otherwise the call fails with ErrInvalidInput.
func (s *Store) Load(ctx context.Context, e Entity, id string) error {
	collection, key, err := ParseID(id)
	if err != nil {
		return err
	}
	if collection != e.Collection() {
		return fmt.Errorf("%w: id %q does not belong to collection %q",
			errs.ErrInvalidInput, id, e.Collection())
	}
	if _, err := s.registry.Resolve(collection); err != nil {
		return err
	}
	return s.fetch(ctx, e, collection, key)
}

// Query returns every document in the collection whose body contains the
// given filter (JSONB containment). A nil or empty filter returns the
// whole collection, ordered by creation time.
func (s *Store) Query(ctx context.Context, collection string, filter map[string]any) ([]Entity, error) {
	construct, err := s.registry.Resolve(collection)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, s.dbErr("query", collection, err, "filter", filter)
	}
	defer conn.Release()

	var rows pgx.Rows
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("%w: marshaling filter: %v", errs.ErrInvalidInput, err)
		}
		rows, err = conn.Query(ctx, fmt.Sprintf(
			`SELECT id, data, created_at, updated_at FROM %s
			 WHERE data @> $1 ORDER BY created_at, id`, collection), filterJSON)
		if err != nil {
			return nil, s.dbErr("query", collection, err, "filter", filter)
		}
	} else {
		rows, err = conn.Query(ctx, fmt.Sprintf(
			`SELECT id, data, created_at, updated_at FROM %s
			 ORDER BY created_at, id`, collection))
		if err != nil {
			return nil, s.dbErr("query", collection, err)
		}
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			key                  uuid.UUID
			data                 []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&key, &data, &createdAt, &updatedAt); err != nil {
			return nil, s.dbErr("query", collection, err, "filter", filter)
		}
		e := construct()
		if err := scanInto(e, collection, key, data, createdAt, updatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dbErr("query", collection, err, "filter", filter)
	}
	return out, nil
}

// Count returns the number of documents matching the filter, or the total
// collection size when the filter is empty.
func (s *Store) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if _, err := s.registry.Resolve(collection); err != nil {
		return 0, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, s.dbErr("count", collection, err, "filter", filter)
	}
	defer conn.Release()

	var count int64
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("%w: marshaling filter: %v", errs.ErrInvalidInput, err)
		}
		err = conn.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s WHERE data @> $1`, collection), filterJSON).Scan(&count)
		if err != nil {
			return 0, s.dbErr("count", collection, err, "filter", filter)
		}
	} else {
		if err := conn.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, collection)).Scan(&count); err != nil {
			return 0, s.dbErr("count", collection, err)
		}
	}
	return count, nil
}

// Upsert saves the entity over the first existing document matching the
// filter, or inserts a new one when no match exists. The entity's id is
// overwritten with the matched document's id before saving.
//
// The lookup and the write are separate statements; under concurrent
// upserts of the same filter, last write wins.
func (s *Store) Upsert(ctx context.Context, filter map[string]any, e Entity) error {
	collection := e.Collection()
	if _, err := s.registry.Resolve(collection); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("%w: upsert requires a non-empty filter", errs.ErrInvalidInput)
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("%w: marshaling filter: %v", errs.ErrInvalidInput, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.dbErr("upsert", collection, err, "filter", filter)
	}

	var key uuid.UUID
	err = conn.QueryRow(ctx, fmt.Sprintf(
		`SELECT id FROM %s WHERE data @> $1 ORDER BY created_at, id LIMIT 1`, collection),
		filterJSON).Scan(&key)
	conn.Release()

	switch {
	case err == nil:
		e.Meta().ID = FormatID(collection, key)
	case errors.Is(err, pgx.ErrNoRows):
		e.Meta().ID = ""
	default:
		return s.dbErr("upsert", collection, err, "filter", filter)
	}

	return s.Save(ctx, e)
}

// Delete removes the document addressed by id. It reports whether a row
// was actually deleted; a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	collection, key, err := ParseID(id)
	if err != nil {
		return false, err
	}
	if _, err := s.registry.Resolve(collection); err != nil {
		return false, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, s.dbErr("delete", collection, err, "id", id)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection), key)
	if err != nil {
		return false, s.dbErr("delete", collection, err, "id", id)
	}

	deleted := tag.RowsAffected() > 0
	s.logger.Debug("deleted document", "id", id, "found", deleted)
	return deleted, nil
}

// DeleteWhere removes every document matching the filter and returns the
// number of rows deleted. An empty filter is rejected so a bug cannot
// silently wipe a collection.
func (s *Store) DeleteWhere(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if _, err := s.registry.Resolve(collection); err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: delete requires a non-empty filter", errs.ErrInvalidInput)
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("%w: marshaling filter: %v", errs.ErrInvalidInput, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, s.dbErr("delete_where", collection, err, "filter", filter)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE data @> $1`, collection), filterJSON)
	if err != nil {
		return 0, s.dbErr("delete_where", collection, err, "filter", filter)
	}

	s.logger.Debug("deleted documents", "collection", collection, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// EnsureVectorIndex idempotently creates the cosine similarity index for a
// collection at the given dimensionality. The embedding column itself is
// dimensionless; the index binds the dimension through a cast expression,
// so it only becomes possible once the active embedding model is known.
//
// CREATE INDEX IF NOT EXISTS makes concurrent callers with identical
// parameters converge on exactly one index.
func (s *Store) EnsureVectorIndex(ctx context.Context, collection string, dimension int) error {
	if _, err := s.registry.Resolve(collection); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive, got %d", errs.ErrInvalidInput, dimension)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.dbErr("ensure_index", collection, err, "dimension", dimension)
	}
	defer conn.Release()

	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
		 USING hnsw ((embedding::vector(%d)) vector_cosine_ops)
		 WHERE embedding IS NOT NULL`,
		collection, collection, dimension)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return s.dbErr("ensure_index", collection, err, "dimension", dimension)
	}

	s.logger.Debug("similarity index ensured", "collection", collection, "dimension", dimension)
	return nil
}

// SearchSimilar returns the k documents nearest to the query embedding by
// cosine similarity, best first. The approximate-search candidate pool is
// widened to 15x the requested count (capped by pgvector's ef_search
// limit) before the backend narrows it to k.
//
// Documents without an embedding are never returned.
func (s *Store) SearchSimilar(ctx context.Context, collection string, embedding []float32, k int) ([]Hit, error) {
	construct, err := s.registry.Resolve(collection)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: result limit must be positive, got %d", errs.ErrInvalidInput, k)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", errs.ErrInvalidInput)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}
	defer conn.Release()

	// SET LOCAL scopes the candidate-pool width to this transaction.
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pool := min(overFetchFactor*k, maxEFSearch)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, pool)); err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}

	dim := len(embedding)
	vec := pgvector.NewVector(embedding)
	rows, err := tx.Query(ctx, fmt.Sprintf(
		`SELECT id, data, created_at, updated_at,
		        1 - (embedding::vector(%d) <=> $1) AS similarity
		 FROM %s
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding::vector(%d) <=> $1
		 LIMIT $2`, dim, collection, dim),
		vec, k)
	if err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			key                  uuid.UUID
			data                 []byte
			createdAt, updatedAt time.Time
			similarity           float64
		)
		if err := rows.Scan(&key, &data, &createdAt, &updatedAt, &similarity); err != nil {
			return nil, s.dbErr("search", collection, err, "k", k)
		}
		e := construct()
		if err := scanInto(e, collection, key, data, createdAt, updatedAt); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Entity: e, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.dbErr("search", collection, err, "k", k)
	}

	s.logger.Debug("similarity search", "collection", collection, "k", k, "hits", len(hits))
	return hits, nil
}

// fetch reads one row into e.
func (s *Store) fetch(ctx context.Context, e Entity, collection string, key uuid.UUID) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.dbErr("get", collection, err, "key", key)
	}
	defer conn.Release()

	var (
		data                 []byte
		createdAt, updatedAt time.Time
	)
	err = conn.QueryRow(ctx, fmt.Sprintf(
		`SELECT data, created_at, updated_at FROM %s WHERE id = $1`, collection), key).
		Scan(&data, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: document %q", errs.ErrNotFound, FormatID(collection, key))
		}
		return s.dbErr("get", collection, err, "key", key)
	}
	return scanInto(e, collection, key, data, createdAt, updatedAt)
}

// embed produces the embedding for an Embeddable entity, or nil when the
// entity is not embeddable, has no content, or no embedder is configured.
func (s *Store) embed(ctx context.Context, e Entity) (*pgvector.Vector, error) {
	emb, ok := e.(Embeddable)
	if !ok {
		return nil, nil
	}
	text := emb.EmbeddingText()
	if text == "" {
		return nil, nil
	}
	if s.embedder == nil {
		s.logger.Warn("no embedding model configured, saving without embedding",
			"collection", e.Collection())
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, ErrNoEmbedder) {
			s.logger.Warn("no embedding model configured, saving without embedding",
				"collection", e.Collection())
			return nil, nil
		}
		return nil, fmt.Errorf("%w: embedding %s content: %v", errs.ErrExternal, e.Collection(), err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", errs.ErrExternal)
	}

	v := pgvector.NewVector(vec)
	return &v, nil
}

// dbErr logs a backend failure with its operation context and wraps it as
// a database-operation error.
func (s *Store) dbErr(op, collection string, err error, attrs ...any) error {
	args := append([]any{"op", op, "collection", collection, "error", err}, attrs...)
	s.logger.Error("store operation failed", args...)
	return fmt.Errorf("%w: %s %s: %v", errs.ErrDatabase, op, collection, err)
}

// scanInto unmarshals a row into the entity and populates its metadata.
func scanInto(e Entity, collection string, key uuid.UUID, data []byte, createdAt, updatedAt time.Time) error {
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("%w: unmarshaling %s document: %v", errs.ErrDatabase, collection, err)
	}
	m := e.Meta()
	m.ID = FormatID(collection, key)
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return nil
}
