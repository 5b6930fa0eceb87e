package access

import "context"

// GrantStore persists permission grants, unique per (content ref, user id)
// pair. Grants live independently of item lifecycle: deleting items never
// revokes grants, and granting never requires the content to be placed.
type GrantStore interface {
	// PutGrant creates or replaces the grant for the pair.
	PutGrant(ctx context.Context, contentRef, userID string, level Level) error

	// GetGrant returns the grant level for the pair. The second result is
	// false when no grant exists.
	GetGrant(ctx context.Context, contentRef, userID string) (Level, bool, error)

	// RevokeGrant removes the grant for the pair. Revoking an absent grant
	// is a no-op.
	RevokeGrant(ctx context.Context, contentRef, userID string) error
}
