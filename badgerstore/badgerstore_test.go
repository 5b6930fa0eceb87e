package badgerstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/graft/access"
	"github.com/jacentio/graft/badgerstore"
	"github.com/jacentio/graft/store"
)

func newBackend(t *testing.T) *badgerstore.Store {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory backend: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close backend: %v", err)
		}
	})
	return s
}

func putItem(t *testing.T, s *badgerstore.Store, it *store.Item) {
	t.Helper()
	tx := &store.Tx{}
	tx.Put(it)
	if err := s.Apply(context.Background(), tx); err != nil {
		t.Fatalf("put %s failed: %v", it.ID, err)
	}
}

// --- Open ---

func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := badgerstore.Open(badgerstore.Config{})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("open persistent backend: %v", err)
	}
	defer s.Close()

	putItem(t, s, &store.Item{ID: "a", ContentRef: "doc"})
	it, err := s.GetItem(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if it.ContentRef != "doc" {
		t.Errorf("expected content 'doc', got %q", it.ContentRef)
	}
}

// --- Items ---

func TestApply_PutAndGet(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "a", ContentRef: "doc", Ascendant: "stem"})

	it, err := s.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if it.Version != 1 {
		t.Errorf("expected version 1, got %d", it.Version)
	}
	if it.CreatedAt == "" || it.UpdatedAt == "" {
		t.Error("expected timestamps set")
	}
}

func TestApply_PutDuplicate(t *testing.T) {
	s := newBackend(t)

	putItem(t, s, &store.Item{ID: "a"})

	tx := &store.Tx{}
	tx.Put(&store.Item{ID: "a"})
	err := s.Apply(context.Background(), tx)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	s := newBackend(t)

	_, err := s.GetItem(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApply_Atomic(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "a"})

	// A batch whose second op fails must not commit its first op.
	tx := &store.Tx{}
	tx.Put(&store.Item{ID: "b"})
	tx.Put(&store.Item{ID: "a"})
	if err := s.Apply(ctx, tx); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := s.GetItem(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected b not committed, got %v", err)
	}
}

// --- Updates ---

func TestApply_UpdatePointers(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "a"})
	putItem(t, s, &store.Item{ID: "b"})

	tx := &store.Tx{}
	tx.Update(&store.PointerUpdate{
		ID:              "a",
		ExpectedVersion: 1,
		SetHead:         true,
		NewHead:         "b",
	})
	if err := s.Apply(ctx, tx); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	it, _ := s.GetItem(ctx, "a")
	if it.DescendantHead != "b" {
		t.Errorf("expected head 'b', got %q", it.DescendantHead)
	}
	if it.Version != 2 {
		t.Errorf("expected version 2, got %d", it.Version)
	}

	stems, err := s.MountingStems(ctx, "b")
	if err != nil {
		t.Fatalf("MountingStems failed: %v", err)
	}
	if len(stems) != 1 || stems[0].ID != "a" {
		t.Errorf("expected stems [a], got %v", stems)
	}
}

func TestApply_UpdateVersionMismatch(t *testing.T) {
	s := newBackend(t)

	putItem(t, s, &store.Item{ID: "a"})

	tx := &store.Tx{}
	tx.Update(&store.PointerUpdate{
		ID:              "a",
		ExpectedVersion: 7,
		SetHead:         true,
		NewHead:         "b",
	})
	err := s.Apply(context.Background(), tx)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestApply_UpdateMovesLinkIndex(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "a", DescendantHead: "old"})
	putItem(t, s, &store.Item{ID: "old"})
	putItem(t, s, &store.Item{ID: "new"})

	tx := &store.Tx{}
	tx.Update(&store.PointerUpdate{
		ID:              "a",
		ExpectedVersion: 1,
		SetHead:         true,
		OldHead:         "old",
		NewHead:         "new",
	})
	if err := s.Apply(ctx, tx); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	oldStems, _ := s.MountingStems(ctx, "old")
	if len(oldStems) != 0 {
		t.Errorf("expected old target unlinked, got %d stems", len(oldStems))
	}
	newStems, _ := s.MountingStems(ctx, "new")
	if len(newStems) != 1 || newStems[0].ID != "a" {
		t.Errorf("expected stems [a] on new target, got %v", newStems)
	}
}

// --- Deletes ---

func TestApply_DeleteRemovesLinks(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "stem"})
	putItem(t, s, &store.Item{ID: "a", ContentRef: "doc", Ascendant: "stem", PeerNext: "p"})
	putItem(t, s, &store.Item{ID: "p"})

	tx := &store.Tx{}
	tx.Delete(&store.Item{ID: "a"})
	if err := s.Apply(ctx, tx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := s.GetItem(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected item gone, got %v", err)
	}
	natives, _ := s.NativeDescendants(ctx, "stem")
	if len(natives) != 0 {
		t.Errorf("expected no natives, got %d", len(natives))
	}
	preds, _ := s.PeerPredecessors(ctx, "p")
	if len(preds) != 0 {
		t.Errorf("expected no predecessors, got %d", len(preds))
	}
	placements, _ := s.ItemsByContent(ctx, "doc")
	if len(placements) != 0 {
		t.Errorf("expected no placements, got %d", len(placements))
	}
}

// --- Adjacency ---

func TestAdjacencyQueries(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "stem", ContentRef: "doc"})
	putItem(t, s, &store.Item{ID: "a", ContentRef: "doc", Ascendant: "stem"})
	putItem(t, s, &store.Item{ID: "b", Ascendant: "stem", PeerNext: "a"})

	natives, err := s.NativeDescendants(ctx, "stem")
	if err != nil {
		t.Fatalf("NativeDescendants failed: %v", err)
	}
	if len(natives) != 2 {
		t.Errorf("expected 2 natives, got %d", len(natives))
	}

	preds, err := s.PeerPredecessors(ctx, "a")
	if err != nil {
		t.Fatalf("PeerPredecessors failed: %v", err)
	}
	if len(preds) != 1 || preds[0].ID != "b" {
		t.Errorf("expected predecessors [b], got %v", preds)
	}

	placements, err := s.ItemsByContent(ctx, "doc")
	if err != nil {
		t.Fatalf("ItemsByContent failed: %v", err)
	}
	if len(placements) != 2 {
		t.Errorf("expected 2 placements, got %d", len(placements))
	}
}

func TestAdjacency_OpaqueRefsDoNotCollide(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	// Refs sharing a prefix must not bleed into each other's scans.
	putItem(t, s, &store.Item{ID: "x", ContentRef: "doc"})
	putItem(t, s, &store.Item{ID: "y", ContentRef: "doc-archive"})

	placements, err := s.ItemsByContent(ctx, "doc")
	if err != nil {
		t.Fatalf("ItemsByContent failed: %v", err)
	}
	if len(placements) != 1 || placements[0].ID != "x" {
		t.Errorf("expected placements [x], got %v", placements)
	}
}

// --- View ---

func TestView_ReaderSeesCommittedState(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	putItem(t, s, &store.Item{ID: "a", ContentRef: "doc"})

	err := s.View(ctx, func(r store.ItemReader) error {
		it, err := r.GetItem(ctx, "a")
		if err != nil {
			return err
		}
		if it.ContentRef != "doc" {
			t.Errorf("expected content 'doc', got %q", it.ContentRef)
		}
		placements, err := r.ItemsByContent(ctx, "doc")
		if err != nil {
			return err
		}
		if len(placements) != 1 {
			t.Errorf("expected 1 placement, got %d", len(placements))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

// --- Grants ---

func TestGrants(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	_, ok, err := s.GetGrant(ctx, "doc", "alice")
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if ok {
		t.Error("expected no grant initially")
	}

	if err := s.PutGrant(ctx, "doc", "alice", access.LevelEdit); err != nil {
		t.Fatalf("PutGrant failed: %v", err)
	}
	level, ok, err := s.GetGrant(ctx, "doc", "alice")
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if !ok || level != access.LevelEdit {
		t.Errorf("expected edit grant, got ok=%v level=%v", ok, level)
	}

	// Replace is allowed.
	if err := s.PutGrant(ctx, "doc", "alice", access.LevelAdmin); err != nil {
		t.Fatalf("PutGrant failed: %v", err)
	}
	level, _, _ = s.GetGrant(ctx, "doc", "alice")
	if level != access.LevelAdmin {
		t.Errorf("expected admin after replace, got %v", level)
	}

	if err := s.RevokeGrant(ctx, "doc", "alice"); err != nil {
		t.Fatalf("RevokeGrant failed: %v", err)
	}
	_, ok, _ = s.GetGrant(ctx, "doc", "alice")
	if ok {
		t.Error("expected grant revoked")
	}

	// Revoking an absent grant is a no-op.
	if err := s.RevokeGrant(ctx, "doc", "alice"); err != nil {
		t.Errorf("expected no error revoking absent grant, got %v", err)
	}
}

func TestGrants_PerPair(t *testing.T) {
	s := newBackend(t)
	ctx := context.Background()

	if err := s.PutGrant(ctx, "doc", "alice", access.LevelAdmin); err != nil {
		t.Fatalf("PutGrant failed: %v", err)
	}

	if _, ok, _ := s.GetGrant(ctx, "doc", "bob"); ok {
		t.Error("expected no grant for bob")
	}
	if _, ok, _ := s.GetGrant(ctx, "other", "alice"); ok {
		t.Error("expected no grant on other content")
	}
}
