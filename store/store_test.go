package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/graft/badgerstore"
	"github.com/jacentio/graft/store"
)

// newTestStore returns a Store over a fresh in-memory backend.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := badgerstore.Open(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory backend: %v", err)
	}
	t.Cleanup(func() {
		if err := backend.Close(); err != nil {
			t.Errorf("close backend: %v", err)
		}
	})
	return store.New(backend, store.DefaultConfig())
}

// --- Create / Get ---

func TestCreateRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRoot(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	it, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if it.ContentRef != "doc-1" {
		t.Errorf("expected content 'doc-1', got %q", it.ContentRef)
	}
	if !it.IsRoot() {
		t.Error("expected root item")
	}
	if it.DescendantHead != "" || it.PeerNext != "" {
		t.Errorf("expected empty pointers, got head=%q peer=%q", it.DescendantHead, it.PeerNext)
	}
	if it.Version != 1 {
		t.Errorf("expected version 1, got %d", it.Version)
	}
	if it.CreatedAt == "" || it.UpdatedAt == "" {
		t.Error("expected timestamps to be set")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// --- Native Growth ---

func TestAddNativeDescendant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, err := s.CreateRoot(ctx, "root")
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}

	child, err := s.AddNativeDescendant(ctx, root, "child")
	if err != nil {
		t.Fatalf("AddNativeDescendant failed: %v", err)
	}

	rootItem, err := s.Get(ctx, root)
	if err != nil {
		t.Fatalf("Get root failed: %v", err)
	}
	if rootItem.DescendantHead != child {
		t.Errorf("expected head %q, got %q", child, rootItem.DescendantHead)
	}

	childItem, err := s.Get(ctx, child)
	if err != nil {
		t.Fatalf("Get child failed: %v", err)
	}
	if childItem.Ascendant != root {
		t.Errorf("expected ascendant %q, got %q", root, childItem.Ascendant)
	}
	if childItem.PeerNext != "" {
		t.Errorf("expected empty peer, got %q", childItem.PeerNext)
	}
}

func TestAddNativeDescendant_SplicesPreviousHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, _ := s.CreateRoot(ctx, "root")
	first, err := s.AddNativeDescendant(ctx, root, "first")
	if err != nil {
		t.Fatalf("first AddNativeDescendant failed: %v", err)
	}
	second, err := s.AddNativeDescendant(ctx, root, "second")
	if err != nil {
		t.Fatalf("second AddNativeDescendant failed: %v", err)
	}

	rootItem, _ := s.Get(ctx, root)
	if rootItem.DescendantHead != second {
		t.Errorf("expected head %q, got %q", second, rootItem.DescendantHead)
	}

	secondItem, _ := s.Get(ctx, second)
	if secondItem.PeerNext != first {
		t.Errorf("expected peer %q, got %q", first, secondItem.PeerNext)
	}
}

func TestAddNativeDescendant_MissingStem(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddNativeDescendant(context.Background(), "missing", "child")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddNativeDescendant_MountedHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Stem mounts a foreign root as its head. Growing a native descendant
	// would peer-link the mounted head, which must stay a branch head.
	stem, _ := s.CreateRoot(ctx, "stem")
	foreign, _ := s.CreateRoot(ctx, "foreign")
	if err := s.SetDescendantHead(ctx, stem, foreign); err != nil {
		t.Fatalf("SetDescendantHead failed: %v", err)
	}

	_, err := s.AddNativeDescendant(ctx, stem, "child")
	if !errors.Is(err, store.ErrMountedHead) {
		t.Errorf("expected ErrMountedHead, got %v", err)
	}
}

// --- Peers ---

func TestAddPeer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, _ := s.CreateRoot(ctx, "root")
	a, _ := s.AddNativeDescendant(ctx, root, "a")
	b, err := s.AddPeer(ctx, a, "b")
	if err != nil {
		t.Fatalf("AddPeer failed: %v", err)
	}

	aItem, _ := s.Get(ctx, a)
	if aItem.PeerNext != b {
		t.Errorf("expected a's peer %q, got %q", b, aItem.PeerNext)
	}

	bItem, _ := s.Get(ctx, b)
	if bItem.Ascendant != root {
		t.Errorf("expected b's ascendant %q, got %q", root, bItem.Ascendant)
	}
}

func TestAddPeer_SplicesMidChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, _ := s.CreateRoot(ctx, "root")
	a, _ := s.AddNativeDescendant(ctx, root, "a")
	c, _ := s.AddPeer(ctx, a, "c")

	// Insert b between a and c.
	b, err := s.AddPeer(ctx, a, "b")
	if err != nil {
		t.Fatalf("AddPeer failed: %v", err)
	}

	aItem, _ := s.Get(ctx, a)
	bItem, _ := s.Get(ctx, b)
	if aItem.PeerNext != b {
		t.Errorf("expected a -> b, got a -> %q", aItem.PeerNext)
	}
	if bItem.PeerNext != c {
		t.Errorf("expected b -> c, got b -> %q", bItem.PeerNext)
	}
}

// --- Composition ---

func TestSetDescendantHead_Flux(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	target, _ := s.CreateRoot(ctx, "target")

	if err := s.SetDescendantHead(ctx, stem, target); err != nil {
		t.Fatalf("SetDescendantHead failed: %v", err)
	}

	stemItem, _ := s.Get(ctx, stem)
	if stemItem.DescendantHead != target {
		t.Errorf("expected head %q, got %q", target, stemItem.DescendantHead)
	}

	flux, err := s.FluxStems(ctx, target)
	if err != nil {
		t.Fatalf("FluxStems failed: %v", err)
	}
	if len(flux) != 1 || flux[0].ID != stem {
		t.Errorf("expected flux stem [%s], got %v", stem, flux)
	}
}

func TestSetDescendantHead_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	target, _ := s.CreateRoot(ctx, "target")

	if err := s.SetDescendantHead(ctx, stem, target); err != nil {
		t.Fatalf("first compose failed: %v", err)
	}
	before, _ := s.Get(ctx, stem)

	if err := s.SetDescendantHead(ctx, stem, target); err != nil {
		t.Fatalf("second compose failed: %v", err)
	}
	after, _ := s.Get(ctx, stem)

	if after.DescendantHead != before.DescendantHead {
		t.Errorf("expected head unchanged, got %q", after.DescendantHead)
	}
	if after.Version != before.Version {
		t.Errorf("expected version unchanged %d, got %d", before.Version, after.Version)
	}
}

func TestSetDescendantHead_SelfReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	err := s.SetDescendantHead(ctx, stem, stem)
	if !errors.Is(err, store.ErrSelfReference) {
		t.Errorf("expected ErrSelfReference, got %v", err)
	}
}

func TestSetDescendantHead_NotBranchHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// b has an incoming peer link from a, so it cannot be composed.
	root, _ := s.CreateRoot(ctx, "root")
	a, _ := s.AddNativeDescendant(ctx, root, "a")
	b, _ := s.AddPeer(ctx, a, "b")

	stem, _ := s.CreateRoot(ctx, "stem")
	err := s.SetDescendantHead(ctx, stem, b)
	if !errors.Is(err, store.ErrNotBranchHead) {
		t.Errorf("expected ErrNotBranchHead, got %v", err)
	}
}

func TestSetDescendantHead_MissingTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	err := s.SetDescendantHead(ctx, stem, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearDescendantHead_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	target, _ := s.CreateRoot(ctx, "target")

	if err := s.SetDescendantHead(ctx, stem, target); err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if err := s.ClearDescendantHead(ctx, stem); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	stemItem, _ := s.Get(ctx, stem)
	if stemItem.DescendantHead != "" {
		t.Errorf("expected empty head after clear, got %q", stemItem.DescendantHead)
	}

	// The formerly mounted subtree survives detachment.
	if _, err := s.Get(ctx, target); err != nil {
		t.Errorf("expected target to survive, got %v", err)
	}
	flux, _ := s.FluxStems(ctx, target)
	if len(flux) != 0 {
		t.Errorf("expected no flux stems after clear, got %d", len(flux))
	}
}

func TestClearDescendantHead_EmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stem, _ := s.CreateRoot(ctx, "stem")
	before, _ := s.Get(ctx, stem)

	if err := s.ClearDescendantHead(ctx, stem); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	after, _ := s.Get(ctx, stem)
	if after.Version != before.Version {
		t.Errorf("expected version unchanged %d, got %d", before.Version, after.Version)
	}
}

func TestSetDescendantHead_MultipleMounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	target, _ := s.CreateRoot(ctx, "target")
	s1, _ := s.CreateRoot(ctx, "s1")
	s2, _ := s.CreateRoot(ctx, "s2")

	if err := s.SetDescendantHead(ctx, s1, target); err != nil {
		t.Fatalf("first mount failed: %v", err)
	}
	if err := s.SetDescendantHead(ctx, s2, target); err != nil {
		t.Fatalf("second mount failed: %v", err)
	}

	flux, err := s.FluxStems(ctx, target)
	if err != nil {
		t.Fatalf("FluxStems failed: %v", err)
	}
	if len(flux) != 2 {
		t.Errorf("expected 2 flux stems, got %d", len(flux))
	}
}

// --- Visual Ref ---

func TestSetVisualRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, _ := s.CreateRoot(ctx, "root")
	child, _ := s.AddNativeDescendant(ctx, root, "child")

	if err := s.SetVisualRef(ctx, child, "tile-7"); err != nil {
		t.Fatalf("SetVisualRef failed: %v", err)
	}

	it, _ := s.Get(ctx, child)
	if it.VisualRef != "tile-7" {
		t.Errorf("expected visual 'tile-7', got %q", it.VisualRef)
	}
	if it.Ascendant != root || it.DescendantHead != "" || it.PeerNext != "" {
		t.Error("expected structural pointers untouched")
	}

	// Clearing the reference never affects pointer integrity.
	if err := s.SetVisualRef(ctx, child, ""); err != nil {
		t.Fatalf("clear visual failed: %v", err)
	}
	it, _ = s.Get(ctx, child)
	if it.VisualRef != "" {
		t.Errorf("expected cleared visual, got %q", it.VisualRef)
	}
	if it.Ascendant != root {
		t.Error("expected ascendant untouched after clear")
	}
}
