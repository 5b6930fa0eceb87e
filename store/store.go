package store

import (
	"context"

	"github.com/google/uuid"
)

// Store provides pointer-consistent item operations over a Backend.
type Store struct {
	backend Backend
	config  Config
}

// New creates a new Store instance.
func New(backend Backend, config Config) *Store {
	config.validate()
	return &Store{
		backend: backend,
		config:  config,
	}
}

// Backend returns the backing record store.
func (s *Store) Backend() Backend { return s.backend }

// Config returns the traversal bounds in effect.
func (s *Store) Config() Config { return s.config }

// Get retrieves an item by id, returning ErrNotFound if missing or deleted.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	return s.backend.GetItem(ctx, id)
}

// CreateRoot creates an item with no ascendant.
func (s *Store) CreateRoot(ctx context.Context, contentRef string) (string, error) {
	it := &Item{
		ID:         uuid.NewString(),
		ContentRef: contentRef,
	}
	tx := &Tx{}
	tx.Put(it)
	if err := s.backend.Apply(ctx, tx); err != nil {
		return "", err
	}
	return it.ID, nil
}

// AddNativeDescendant creates a new item natively grown from stemID and
// splices it in as the stem's new descendant head. The stem's previous head
// becomes the new item's peer successor.
//
// Fails with ErrMountedHead if the stem's current head is a flux mount: a
// mounted head must stay a branch head and cannot gain an incoming peer
// link.
func (s *Store) AddNativeDescendant(ctx context.Context, stemID, contentRef string) (string, error) {
	stem, err := s.backend.GetItem(ctx, stemID)
	if err != nil {
		return "", err
	}
	if err := s.checkAscendantChain(ctx, s.backend, stem); err != nil {
		return "", err
	}

	if stem.DescendantHead != "" {
		head, err := s.backend.GetItem(ctx, stem.DescendantHead)
		if err != nil {
			return "", err
		}
		if head.Ascendant != stem.ID {
			return "", ErrMountedHead
		}
	}

	it := &Item{
		ID:         uuid.NewString(),
		ContentRef: contentRef,
		Ascendant:  stem.ID,
		PeerNext:   stem.DescendantHead,
	}

	tx := &Tx{}
	tx.Put(it)
	tx.Update(&PointerUpdate{
		ID:              stem.ID,
		ExpectedVersion: stem.Version,
		SetHead:         true,
		OldHead:         stem.DescendantHead,
		NewHead:         it.ID,
	})
	if err := s.backend.Apply(ctx, tx); err != nil {
		return "", err
	}
	return it.ID, nil
}

// AddPeer creates a new item sharing itemID's ascendant, inserted
// immediately after it in the peer chain.
func (s *Store) AddPeer(ctx context.Context, itemID, contentRef string) (string, error) {
	after, err := s.backend.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if err := s.checkAscendantChain(ctx, s.backend, after); err != nil {
		return "", err
	}

	it := &Item{
		ID:         uuid.NewString(),
		ContentRef: contentRef,
		Ascendant:  after.Ascendant,
		PeerNext:   after.PeerNext,
	}

	tx := &Tx{}
	tx.Put(it)
	tx.Update(&PointerUpdate{
		ID:              after.ID,
		ExpectedVersion: after.Version,
		SetPeer:         true,
		OldPeer:         after.PeerNext,
		NewPeer:         it.ID,
	})
	if err := s.backend.Apply(ctx, tx); err != nil {
		return "", err
	}
	return it.ID, nil
}

// SetDescendantHead mounts targetID as stemID's current branch head
// ("compose"). The target must be a branch head: composing onto an item
// with an incoming peer link fails with ErrNotBranchHead. The call is
// idempotent; repeating it with the same arguments leaves the pointer graph
// unchanged.
//
// Whether the new edge is a flux boundary depends solely on whether the
// target was natively grown from the stem; no flux state is recorded.
func (s *Store) SetDescendantHead(ctx context.Context, stemID, targetID string) error {
	if stemID == targetID {
		return ErrSelfReference
	}
	stem, err := s.backend.GetItem(ctx, stemID)
	if err != nil {
		return err
	}
	if stem.DescendantHead == targetID {
		return nil
	}
	if _, err := s.backend.GetItem(ctx, targetID); err != nil {
		return err
	}
	preds, err := s.backend.PeerPredecessors(ctx, targetID)
	if err != nil {
		return err
	}
	if len(preds) > 0 {
		return ErrNotBranchHead
	}

	tx := &Tx{}
	tx.Update(&PointerUpdate{
		ID:              stem.ID,
		ExpectedVersion: stem.Version,
		SetHead:         true,
		OldHead:         stem.DescendantHead,
		NewHead:         targetID,
	})
	return s.backend.Apply(ctx, tx)
}

// ClearDescendantHead detaches stemID's current branch head edge. The
// previously mounted subtree is never deleted; only the edge is removed.
// Clearing an already-empty head is a no-op.
func (s *Store) ClearDescendantHead(ctx context.Context, stemID string) error {
	stem, err := s.backend.GetItem(ctx, stemID)
	if err != nil {
		return err
	}
	if stem.DescendantHead == "" {
		return nil
	}

	tx := &Tx{}
	tx.Update(&PointerUpdate{
		ID:              stem.ID,
		ExpectedVersion: stem.Version,
		SetHead:         true,
		OldHead:         stem.DescendantHead,
		NewHead:         "",
	})
	return s.backend.Apply(ctx, tx)
}

// SetVisualRef attaches or replaces the item's visual placement reference.
// An empty ref clears it. The three structural pointers are never touched.
func (s *Store) SetVisualRef(ctx context.Context, id, ref string) error {
	it, err := s.backend.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if it.VisualRef == ref {
		return nil
	}

	tx := &Tx{}
	tx.Update(&PointerUpdate{
		ID:              it.ID,
		ExpectedVersion: it.Version,
		SetVisual:       true,
		NewVisual:       ref,
	})
	return s.backend.Apply(ctx, tx)
}

// Delete removes an item, repairing the pointer graph around it. The repair
// classifies the item by four structural facts (root, native descendants,
// incoming head links, incoming peer link) and commits the whole plan in
// one transaction. Deleting a non-root item that a foreign stem still
// mounts fails with a MountedError.
func (s *Store) Delete(ctx context.Context, id string) error {
	it, err := s.backend.GetItem(ctx, id)
	if err != nil {
		return err
	}
	tx, err := s.planDelete(ctx, it)
	if err != nil {
		return err
	}
	return s.backend.Apply(ctx, tx)
}

// FluxStems returns the stems currently mounting the item across a lineage
// boundary: every item whose DescendantHead is id and whose own id differs
// from the item's ascendant. An empty result means the item is not a flux
// target.
func (s *Store) FluxStems(ctx context.Context, id string) ([]*Item, error) {
	it, err := s.backend.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	stems, err := s.backend.MountingStems(ctx, id)
	if err != nil {
		return nil, err
	}
	var flux []*Item
	for _, stem := range stems {
		if stem.ID != it.Ascendant {
			flux = append(flux, stem)
		}
	}
	return flux, nil
}
