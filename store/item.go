package store

import "context"

// Item is a position in a composable hierarchy. It references content owned
// by an external layer and carries three pointers: the immutable ascendant
// (native lineage), and the mutable descendant-head and peer-next pointers
// (current structure).
type Item struct {
	// ID is the stable, opaque item identifier.
	ID string

	// ContentRef references the externally-owned content unit. The store
	// never inspects content, it only holds the reference.
	ContentRef string

	// Ascendant is the item this one was natively grown from.
	// Empty means root. Immutable once set.
	Ascendant string

	// DescendantHead is the head of this item's current branch. It may
	// point to an item whose Ascendant differs, in which case the edge is
	// a flux boundary (a mount of a foreign subtree).
	DescendantHead string

	// PeerNext is the next item in the same branch.
	PeerNext string

	// VisualRef is an optional placement reference owned by an external
	// rendering layer. Clearing it never affects pointer integrity.
	VisualRef string

	// Version is the optimistic lock version, incremented on every write.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string
}

// IsRoot reports whether the item has no ascendant.
func (it *Item) IsRoot() bool { return it.Ascendant == "" }

// Clone returns a shallow copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	return &c
}

// ItemReader provides point reads and the four adjacency queries over the
// pointer graph. Adjacency results must be consistent with committed writes.
type ItemReader interface {
	// GetItem returns the item with the given id, or ErrNotFound.
	GetItem(ctx context.Context, id string) (*Item, error)

	// NativeDescendants returns all items whose Ascendant is id.
	NativeDescendants(ctx context.Context, id string) ([]*Item, error)

	// MountingStems returns all items whose DescendantHead is id.
	MountingStems(ctx context.Context, id string) ([]*Item, error)

	// PeerPredecessors returns all items whose PeerNext is id.
	PeerPredecessors(ctx context.Context, id string) ([]*Item, error)

	// ItemsByContent returns all items referencing the given content.
	ItemsByContent(ctx context.Context, contentRef string) ([]*Item, error)
}

// Backend is the transactional record store the core runs against.
type Backend interface {
	ItemReader

	// View runs fn against a consistent read snapshot. Implementations
	// without snapshot isolation document their weaker guarantee.
	View(ctx context.Context, fn func(r ItemReader) error) error

	// Apply atomically applies a batch of ops: either every op commits or
	// none does. Pointer updates are guarded by the expected version and
	// fail with ErrConcurrentModification on mismatch.
	Apply(ctx context.Context, tx *Tx) error
}

// PointerUpdate changes the mutable fields of one existing item. Old values
// are carried so backends can maintain adjacency index records in the same
// transaction.
type PointerUpdate struct {
	ID              string
	ExpectedVersion int64

	SetHead bool
	OldHead string
	NewHead string

	SetPeer bool
	OldPeer string
	NewPeer string

	SetVisual bool
	NewVisual string
}

// Op is a single operation within a Tx. Exactly one field is set.
type Op struct {
	// Put creates the item. Fails with ErrAlreadyExists if the id is taken.
	Put *Item

	// Update changes pointer or visual fields of an existing item.
	Update *PointerUpdate

	// Delete removes the item. The full record is carried so backends can
	// clean up the item's outgoing adjacency records.
	Delete *Item
}

// Tx is an ordered batch of operations applied atomically.
type Tx struct {
	Ops []Op
}

// Put appends an item creation.
func (tx *Tx) Put(it *Item) { tx.Ops = append(tx.Ops, Op{Put: it}) }

// Update appends a pointer update.
func (tx *Tx) Update(u *PointerUpdate) { tx.Ops = append(tx.Ops, Op{Update: u}) }

// Delete appends an item deletion.
func (tx *Tx) Delete(it *Item) { tx.Ops = append(tx.Ops, Op{Delete: it}) }
