package store

import "context"

// AscendantWalk is the result of walking the native lineage of an item.
// Items are ordered from the starting item outward toward the root.
type AscendantWalk struct {
	Items []*Item

	// Truncated is set when the walk stopped at the depth or step limit
	// before reaching a root. A truncated walk is incomplete, not empty.
	Truncated bool
}

// BranchStep is one emission of a branch walk.
type BranchStep struct {
	Item  *Item
	Depth int

	// Cycle marks an item revisited within its own traversal path. The
	// item is emitted once at the point of revisit and not re-expanded.
	Cycle bool
}

// BranchWalk is the result of a depth-first walk of the current structure.
type BranchWalk struct {
	Steps     []BranchStep
	Truncated bool
}

// WalkAscendants follows the ascendant chain from itemID until a root or
// the depth limit. The whole walk runs against one read snapshot.
func (s *Store) WalkAscendants(ctx context.Context, itemID string) (*AscendantWalk, error) {
	var walk *AscendantWalk
	err := s.backend.View(ctx, func(r ItemReader) error {
		w, err := walkAscendants(ctx, r, itemID, s.config)
		walk = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return walk, nil
}

func walkAscendants(ctx context.Context, r ItemReader, id string, cfg Config) (*AscendantWalk, error) {
	walk := &AscendantWalk{}
	for id != "" {
		if len(walk.Items) >= cfg.MaxDepth || len(walk.Items) >= cfg.StepBudget {
			walk.Truncated = true
			break
		}
		it, err := r.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		walk.Items = append(walk.Items, it)
		id = it.Ascendant
	}
	return walk, nil
}

// WalkBranch traverses the current structure depth-first from startID,
// expanding each item's descendant head before its peer successor. The walk
// carries the set of ids on the current path: revisiting one emits the item
// flagged as a cycle without re-expanding it. The same item may appear
// multiple times unflagged when reached via different paths, since
// composition permits mounting one subtree at several points.
//
// Depth counts head edges; peers stay at their branch's depth. Traversal
// stops at the depth limit and at the step budget, marking the result
// truncated.
func (s *Store) WalkBranch(ctx context.Context, startID string) (*BranchWalk, error) {
	var walk *BranchWalk
	err := s.backend.View(ctx, func(r ItemReader) error {
		bw := &branchWalker{
			r:    r,
			cfg:  s.config,
			walk: &BranchWalk{},
			path: map[string]bool{},
		}
		if err := bw.visit(ctx, startID, 0); err != nil {
			return err
		}
		walk = bw.walk
		return nil
	})
	if err != nil {
		return nil, err
	}
	return walk, nil
}

type branchWalker struct {
	r     ItemReader
	cfg   Config
	walk  *BranchWalk
	path  map[string]bool
	steps int
}

func (bw *branchWalker) visit(ctx context.Context, id string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bw.steps >= bw.cfg.StepBudget {
		bw.walk.Truncated = true
		return nil
	}
	bw.steps++

	it, err := bw.r.GetItem(ctx, id)
	if err != nil {
		return err
	}

	if bw.path[id] {
		bw.walk.Steps = append(bw.walk.Steps, BranchStep{Item: it, Depth: depth, Cycle: true})
		return nil
	}
	bw.walk.Steps = append(bw.walk.Steps, BranchStep{Item: it, Depth: depth})

	bw.path[id] = true
	defer delete(bw.path, id)

	if it.DescendantHead != "" {
		if depth+1 > bw.cfg.MaxDepth {
			bw.walk.Truncated = true
		} else if err := bw.visit(ctx, it.DescendantHead, depth+1); err != nil {
			return err
		}
	}
	if it.PeerNext != "" {
		if err := bw.visit(ctx, it.PeerNext, depth); err != nil {
			return err
		}
	}
	return nil
}
