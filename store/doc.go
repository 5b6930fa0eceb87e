// Package store models a composable hierarchical store: tree-shaped
// collections of items that can be mounted inside one another while
// preserving each item's native lineage.
//
// Graft keeps two edge relations over one arena of items. The ascendant
// relation records which item an item was natively grown from; it is a
// tree, acyclic, and immutable. The structural relation (descendant head
// plus peer next, a first-descendant/next-peer encoding) records how items
// are currently arranged and may cycle through composition. An edge whose
// target was not natively grown from its source is a flux boundary: the
// point where one tree is mounted inside another.
//
// # Key Features
//
//   - Atomic pointer mutation over a pluggable transactional Backend
//   - Native growth, peer insertion, and composition ("mounting") of
//     existing branch heads
//   - Cycle-tolerant branch traversal with path tracking, bounded by a
//     depth limit and a step budget
//   - Ascendant-chain walking for lineage queries and permission
//     inheritance
//   - Deletion repair: cascade of native descendants, head repointing and
//     peer splicing, committed as one transaction
//   - Optimistic locking with a version field
//
// # Backends
//
// Two Backend implementations ship with the module: dynamo (DynamoDB, one
// TransactWriteItems call per mutation, TTL soft deletes) and badgerstore
// (embedded BadgerDB with serializable transactions). Both maintain the
// adjacency index records transactionally with the pointer writes.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - item doesn't exist or is deleted
//   - [ErrAlreadyExists] - item with the id already exists
//   - [ErrSelfReference], [ErrAscendantCycle], [ErrNotBranchHead],
//     [ErrMountedHead] - structural violations, rejected before any
//     mutation is applied
//   - [ErrMounted] (with [MountedError]) - deleting a mounted flux target
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrStepBudget] - a cascade exceeded the step budget
//
// Truncated traversals are not errors: walk results carry a Truncated flag
// and callers must treat such results as incomplete, never as "no more
// data".
package store
