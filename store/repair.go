package store

import "context"

// planDelete builds the repair transaction for deleting it. Classification
// follows four structural facts:
//
//   - root: the item has no ascendant
//   - native descendants: some item's Ascendant is the victim's id
//   - branch head: some item's DescendantHead points at the victim
//   - peer predecessor: some item's PeerNext points at the victim
//
// The repair actions compose: native descendants are cascade-deleted
// transitively, surviving stems pointing at the victim are repointed to its
// peer successor (cleared for roots), and a surviving peer predecessor is
// spliced past the victim. Deleting a non-root item that a foreign stem
// mounts is rejected, since a flux subtree's lifecycle belongs to the item
// that natively grew it.
func (s *Store) planDelete(ctx context.Context, it *Item) (*Tx, error) {
	stems, err := s.backend.MountingStems(ctx, it.ID)
	if err != nil {
		return nil, err
	}

	if !it.IsRoot() {
		var flux []string
		for _, stem := range stems {
			if stem.ID != it.Ascendant {
				flux = append(flux, stem.ID)
			}
		}
		if len(flux) > 0 {
			return nil, &MountedError{ItemID: it.ID, StemIDs: flux}
		}
	}

	doomed := map[string]*Item{it.ID: it}
	if err := s.collectNativeClosure(ctx, it.ID, doomed); err != nil {
		return nil, err
	}

	updates := map[string]*PointerUpdate{}
	upd := func(src *Item) *PointerUpdate {
		u, ok := updates[src.ID]
		if !ok {
			u = &PointerUpdate{ID: src.ID, ExpectedVersion: src.Version}
			updates[src.ID] = u
		}
		return u
	}

	// Splice surviving peer predecessors past the victim.
	preds, err := s.backend.PeerPredecessors(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range preds {
		if _, gone := doomed[p.ID]; gone {
			continue
		}
		u := upd(p)
		u.SetPeer = true
		u.OldPeer = p.PeerNext
		u.NewPeer = it.PeerNext
	}

	// Repoint surviving stems whose head is the victim. A root has no
	// surviving peer chain of its own stem, so its mounts are cleared.
	newHead := it.PeerNext
	if it.IsRoot() {
		newHead = ""
	}
	for _, stem := range stems {
		if _, gone := doomed[stem.ID]; gone {
			continue
		}
		u := upd(stem)
		u.SetHead = true
		u.OldHead = stem.DescendantHead
		u.NewHead = newHead
	}

	// Cascaded descendants may themselves be mounted elsewhere; surviving
	// foreign stems lose the edge rather than keep a dangling pointer.
	for id := range doomed {
		if id == it.ID {
			continue
		}
		dstems, err := s.backend.MountingStems(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, stem := range dstems {
			if _, gone := doomed[stem.ID]; gone {
				continue
			}
			u := upd(stem)
			u.SetHead = true
			u.OldHead = stem.DescendantHead
			u.NewHead = ""
		}
		dpreds, err := s.backend.PeerPredecessors(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, p := range dpreds {
			if _, gone := doomed[p.ID]; gone {
				continue
			}
			u := upd(p)
			u.SetPeer = true
			u.OldPeer = p.PeerNext
			u.NewPeer = ""
		}
	}

	tx := &Tx{}
	for _, u := range updates {
		tx.Update(u)
	}
	for _, d := range doomed {
		tx.Delete(d)
	}
	return tx, nil
}

// collectNativeClosure gathers the transitive native descendants of id into
// doomed. A closure larger than the step budget fails with ErrStepBudget
// rather than committing a partial delete.
func (s *Store) collectNativeClosure(ctx context.Context, id string, doomed map[string]*Item) error {
	queue := []string{id}
	steps := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		natives, err := s.backend.NativeDescendants(ctx, cur)
		if err != nil {
			return err
		}
		for _, n := range natives {
			if _, seen := doomed[n.ID]; seen {
				continue
			}
			if steps >= s.config.StepBudget {
				return ErrStepBudget
			}
			steps++
			doomed[n.ID] = n
			queue = append(queue, n.ID)
		}
	}
	return nil
}
