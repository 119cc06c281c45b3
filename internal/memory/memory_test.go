package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/argus-scan/argus/internal/embedding"
	"github.com/argus-scan/argus/internal/types"
)

func newTestStore(t *testing.T, withEmbedding bool) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")

	var engine embedding.EmbeddingEngine
	if withEmbedding {
		engine = embedding.NewTrigramEngine(64)
	}

	s, err := New(path, engine, DefaultOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndGet(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	id, err := s.StoreMemory(ctx, "global", "unchecked error return", map[string]interface{}{"kind": "issue_pattern"})
	if err != nil {
		t.Fatalf("StoreMemory failed: %v", err)
	}

	mem, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if mem == nil {
		t.Fatal("expected memory, got nil")
	}
	if mem.Content != "unchecked error return" {
		t.Errorf("expected content match, got %q", mem.Content)
	}
	if !mem.UpdatedAt.Equal(mem.CreatedAt) && mem.UpdatedAt.Before(mem.CreatedAt) {
		t.Error("updated_at must not be before created_at")
	}
}

func TestKeywordFallbackWhenEmbeddingDisabled(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.StoreMemory(ctx, "global", "buffer overflow in parser", nil); err != nil {
			t.Fatalf("StoreMemory failed: %v", err)
		}
	}

	results, err := s.Search(ctx, "global", "overflow", 10, 0, ModeHybrid)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.SearchType != types.SearchTypeKeyword {
			t.Errorf("expected search_type=keyword, got %s", r.SearchType)
		}
	}

	h := s.Health()
	if h.Index != types.IndexUnavailable {
		t.Errorf("expected index=unavailable without sqlite-vec/embedding, got %s", h.Index)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	if _, err := s.StoreMemory(ctx, "python", "bare except clause", nil); err != nil {
		t.Fatalf("StoreMemory failed: %v", err)
	}
	if _, err := s.StoreMemory(ctx, "global", "bare except clause", nil); err != nil {
		t.Fatalf("StoreMemory failed: %v", err)
	}

	results, err := s.Search(ctx, "cpp", "except", 10, 0, ModeKeyword)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results in disjoint namespace, got %d", len(results))
	}

	nsResults, err := s.Search(ctx, "python", "except", 10, 0, ModeKeyword)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(nsResults) != 1 {
		t.Fatalf("expected 1 result in python namespace, got %d", len(nsResults))
	}
}

func TestCountAndClear(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.StoreMemory(ctx, "training", "sample", nil); err != nil {
			t.Fatalf("StoreMemory failed: %v", err)
		}
	}

	count, err := s.Count("training")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected count=5, got %d", count)
	}

	if err := s.Clear("training"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, err = s.Count("training")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count=0 after clear, got %d", count)
	}
}

func TestListNamespaces(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	s.StoreMemory(ctx, "global", "a", nil)
	s.StoreMemory(ctx, "python", "b", nil)

	namespaces, err := s.ListNamespaces()
	if err != nil {
		t.Fatalf("ListNamespaces failed: %v", err)
	}
	found := map[string]bool{}
	for _, ns := range namespaces {
		found[ns] = true
	}
	if !found["global"] || !found["python"] {
		t.Fatalf("expected global and python namespaces, got %v", namespaces)
	}
}

func TestContentTooLargeRejected(t *testing.T) {
	s := newTestStore(t, false)
	s.maxContentBytes = 8

	_, err := s.StoreMemory(context.Background(), "global", "this is definitely too long", nil)
	if err == nil {
		t.Fatal("expected ContentTooLarge error")
	}
	if types.KindOf(err) != types.KindMemory {
		t.Errorf("expected KindMemory, got %v", types.KindOf(err))
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	id, err := s.StoreMemory(ctx, "global", "original", nil)
	if err != nil {
		t.Fatalf("StoreMemory failed: %v", err)
	}
	before, _ := s.Get(id)

	newContent := "updated"
	if err := s.Update(ctx, id, &newContent, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if after.Content != "updated" {
		t.Errorf("expected updated content, got %q", after.Content)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("expected created_at to be preserved across update")
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}
