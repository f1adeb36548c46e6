package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/log"
)

type embeddableDoc struct {
	Metadata
	Content string `json:"content"`
}

func (*embeddableDoc) Collection() string      { return "embeddable_doc" }
func (d *embeddableDoc) EmbeddingText() string { return d.Content }

// stubEmbedder records calls and returns a canned vector or error.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	return e.vector, e.err
}

func TestEmbed_NotEmbeddable(t *testing.T) {
	s := New(nil, NewRegistry(), &stubEmbedder{vector: []float32{1}}, log.NewNop())

	vec, err := s.embed(context.Background(), &testDoc{})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vec != nil {
		t.Error("non-embeddable entity produced an embedding")
	}
}

func TestEmbed_EmptyContentSkips(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1}}
	s := New(nil, NewRegistry(), embedder, log.NewNop())

	vec, err := s.embed(context.Background(), &embeddableDoc{})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vec != nil {
		t.Error("empty content produced an embedding")
	}
	if embedder.calls != 0 {
		t.Errorf("embedder invoked %d times for empty content", embedder.calls)
	}
}

func TestEmbed_NoEmbedderDegrades(t *testing.T) {
	s := New(nil, NewRegistry(), nil, log.NewNop())

	vec, err := s.embed(context.Background(), &embeddableDoc{Content: "hello"})
	if err != nil {
		t.Fatalf("embed without embedder must not fail: %v", err)
	}
	if vec != nil {
		t.Error("expected nil embedding without an embedder")
	}
}

func TestEmbed_ErrNoEmbedderDegrades(t *testing.T) {
	s := New(nil, NewRegistry(), &stubEmbedder{err: ErrNoEmbedder}, log.NewNop())

	vec, err := s.embed(context.Background(), &embeddableDoc{Content: "hello"})
	if err != nil {
		t.Fatalf("ErrNoEmbedder must degrade, got: %v", err)
	}
	if vec != nil {
		t.Error("expected nil embedding when embedder reports no model")
	}
}

func TestEmbed_FailureIsExternal(t *testing.T) {
	s := New(nil, NewRegistry(), &stubEmbedder{err: errors.New("quota exceeded")}, log.NewNop())

	_, err := s.embed(context.Background(), &embeddableDoc{Content: "hello"})
	if !errors.Is(err, errs.ErrExternal) {
		t.Errorf("embed failure = %v, want ErrExternal", err)
	}
}

func TestEmbed_EmptyVectorIsExternal(t *testing.T) {
	s := New(nil, NewRegistry(), &stubEmbedder{}, log.NewNop())

	_, err := s.embed(context.Background(), &embeddableDoc{Content: "hello"})
	if !errors.Is(err, errs.ErrExternal) {
		t.Errorf("empty vector = %v, want ErrExternal", err)
	}
}

func TestEmbed_Success(t *testing.T) {
	s := New(nil, NewRegistry(), &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}}, log.NewNop())

	vec, err := s.embed(context.Background(), &embeddableDoc{Content: "hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vec == nil || len(vec.Slice()) != 3 {
		t.Fatalf("embedding = %v, want 3-dim vector", vec)
	}
}

func TestScanInto(t *testing.T) {
	key := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(time.Hour)

	doc := &embeddableDoc{}
	err := scanInto(doc, "embeddable_doc", key, []byte(`{"content":"body"}`), created, updated)
	if err != nil {
		t.Fatalf("scanInto: %v", err)
	}

	if doc.Content != "body" {
		t.Errorf("content = %q", doc.Content)
	}
	if doc.ID != FormatID("embeddable_doc", key) {
		t.Errorf("id = %q", doc.ID)
	}
	if !doc.CreatedAt.Equal(created) || !doc.UpdatedAt.Equal(updated) {
		t.Errorf("timestamps = %v/%v", doc.CreatedAt, doc.UpdatedAt)
	}
}

func TestScanInto_BadJSON(t *testing.T) {
	err := scanInto(&embeddableDoc{}, "embeddable_doc", uuid.New(), []byte(`{`), time.Now(), time.Now())
	if !errors.Is(err, errs.ErrDatabase) {
		t.Errorf("scanInto bad json = %v, want ErrDatabase", err)
	}
}
