package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/remindhq/remind/internal/domain"
	"github.com/remindhq/remind/internal/errs"
	"github.com/remindhq/remind/internal/log"
	"github.com/remindhq/remind/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockStore records saved entities and optionally fails after a number of
// chunk saves.
type mockStore struct {
	mu        sync.Mutex
	saved     []store.Entity
	failAfter int // fail chunk saves once this many succeeded; -1 = never
	active    atomic.Int32
	maxActive atomic.Int32
}

func newMockStore() *mockStore {
	return &mockStore{failAfter: -1}
}

func (m *mockStore) Save(_ context.Context, e store.Entity) error {
	cur := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.maxActive.Load()
		if cur <= peak || m.maxActive.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond) // give workers a chance to overlap

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 {
		if _, isChunk := e.(*domain.Chunk); isChunk && len(m.chunksLocked()) >= m.failAfter {
			return errs.ErrDatabase
		}
	}
	if !e.Meta().Saved() {
		e.Meta().ID = store.FormatID(e.Collection(), uuid.New())
	}
	m.saved = append(m.saved, e)
	return nil
}

func (m *mockStore) chunksLocked() []*domain.Chunk {
	var out []*domain.Chunk
	for _, e := range m.saved {
		if c, ok := e.(*domain.Chunk); ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockStore) chunks() []*domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunksLocked()
}

func savedSource(t *testing.T, fullText string) *domain.Source {
	t.Helper()
	src := &domain.Source{Title: "t", FullText: fullText}
	src.ID = store.FormatID(domain.CollectionSource, uuid.New())
	return src
}

func TestVectorize_EmptyTextIsNoop(t *testing.T) {
	ms := newMockStore()
	v := New(ms, 1024, 8, log.NewNop())

	n, err := v.Vectorize(context.Background(), savedSource(t, "   \n "))
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if n != 0 || len(ms.chunks()) != 0 {
		t.Errorf("expected no chunks, got %d", len(ms.chunks()))
	}
}

func TestVectorize_UnsavedSourceRejected(t *testing.T) {
	v := New(newMockStore(), 1024, 8, log.NewNop())

	_, err := v.Vectorize(context.Background(), &domain.Source{FullText: "text"})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Vectorize(unsaved) = %v, want ErrInvalidInput", err)
	}
}

func TestVectorize_ShortTextSingleChunk(t *testing.T) {
	ms := newMockStore()
	v := New(ms, 1024, 8, log.NewNop())
	src := savedSource(t, "a short note about tea")

	n, err := v.Vectorize(context.Background(), src)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks = %d, want 1", n)
	}
	chunk := ms.chunks()[0]
	if chunk.SourceID != src.ID {
		t.Errorf("chunk source_id = %q, want %q", chunk.SourceID, src.ID)
	}
	if chunk.Content != "a short note about tea" {
		t.Errorf("chunk content = %q", chunk.Content)
	}
}

func TestVectorize_LongTextManyChunks(t *testing.T) {
	ms := newMockStore()
	v := New(ms, 32, 8, log.NewNop())
	src := savedSource(t, strings.Repeat("tea is best steeped below boiling. ", 80))

	n, err := v.Vectorize(context.Background(), src)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if n < 2 {
		t.Fatalf("chunks = %d, want several", n)
	}
	if got := len(ms.chunks()); got != n {
		t.Errorf("saved %d chunks, reported %d", got, n)
	}
	for _, chunk := range ms.chunks() {
		if chunk.SourceID != src.ID {
			t.Errorf("chunk references %q, want %q", chunk.SourceID, src.ID)
		}
	}
}

func TestVectorize_BoundedConcurrency(t *testing.T) {
	ms := newMockStore()
	v := New(ms, 16, 3, log.NewNop())
	src := savedSource(t, strings.Repeat("word after word after word. ", 200))

	if _, err := v.Vectorize(context.Background(), src); err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if peak := ms.maxActive.Load(); peak > 3 {
		t.Errorf("observed %d concurrent saves, limit 3", peak)
	}
}

func TestVectorize_FirstFailureAborts(t *testing.T) {
	ms := newMockStore()
	ms.failAfter = 2
	v := New(ms, 16, 1, log.NewNop()) // serial so the failure point is deterministic
	src := savedSource(t, strings.Repeat("many words to split across chunks. ", 100))

	_, err := v.Vectorize(context.Background(), src)
	if !errors.Is(err, errs.ErrDatabase) {
		t.Fatalf("Vectorize = %v, want ErrDatabase", err)
	}
	// Partial completion is allowed: the chunks saved before the failure
	// remain, nothing after it was written.
	if got := len(ms.chunks()); got != 2 {
		t.Errorf("chunks persisted before abort = %d, want 2", got)
	}
}

func TestIngest_SavesSourceThenChunks(t *testing.T) {
	ms := newMockStore()
	v := New(ms, 1024, 8, log.NewNop())
	src := &domain.Source{Title: "t", FullText: "some text"}

	n, err := v.Ingest(context.Background(), src)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !src.Saved() {
		t.Error("source not saved")
	}
	if n != 1 {
		t.Errorf("chunks = %d, want 1", n)
	}
}
