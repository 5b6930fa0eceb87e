package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an item doesn't exist or is deleted.
	ErrNotFound = errors.New("graft: item not found")

	// ErrAlreadyExists is returned when creating an item with a taken id.
	ErrAlreadyExists = errors.New("graft: item already exists")

	// ErrSelfReference is returned when an operation would make an item
	// reference itself through any of its three pointers.
	ErrSelfReference = errors.New("graft: item cannot reference itself")

	// ErrAscendantCycle is returned when a write would introduce a cycle
	// into the ascendant chain.
	ErrAscendantCycle = errors.New("graft: ascendant chain contains a cycle")

	// ErrNotBranchHead is returned when composing onto an item that has an
	// incoming peer link. Flux targets must be branch heads.
	ErrNotBranchHead = errors.New("graft: composition target is not a branch head")

	// ErrMountedHead is returned when native growth would peer-link the
	// stem's current head and that head is mounted from another lineage.
	ErrMountedHead = errors.New("graft: current descendant head belongs to another lineage")

	// ErrMounted is returned when deleting an item that some foreign stem
	// still mounts. See MountedError for the mounting stems.
	ErrMounted = errors.New("graft: item is still mounted")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails during Apply.
	ErrConcurrentModification = errors.New("graft: item was modified concurrently")

	// ErrStepBudget is returned when a mutating operation (cascade
	// classification) would exceed the configured step budget. Read-only
	// traversals never return it; they truncate instead.
	ErrStepBudget = errors.New("graft: step budget exhausted")
)

// MountedError reports an attempt to delete a flux target while it is still
// mounted. The mounting stem ids are carried for diagnostics.
type MountedError struct {
	ItemID  string
	StemIDs []string
}

func (e *MountedError) Error() string {
	return fmt.Sprintf("graft: item %s is still mounted by [%s]", e.ItemID, strings.Join(e.StemIDs, ", "))
}

func (e *MountedError) Unwrap() error { return ErrMounted }
