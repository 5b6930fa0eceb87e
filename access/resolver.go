package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/graft/store"
)

// Resolver answers "can user U exercise capability C on content reachable
// through the item graph". It never fails open: unresolved, truncated, or
// cyclic lookups deny and log an advisory.
type Resolver struct {
	items  store.Backend
	grants GrantStore
	config store.Config
	logger *slog.Logger
	cache  *decisionCache
}

// NewResolver creates a resolver over an item backend and a grant store.
// Zero config fields fall back to store defaults. A nil logger uses
// slog.Default().
func NewResolver(items store.Backend, grants GrantStore, config store.Config, logger *slog.Logger) *Resolver {
	def := store.DefaultConfig()
	if config.MaxDepth < 1 {
		config.MaxDepth = def.MaxDepth
	}
	if config.StepBudget < 1 {
		config.StepBudget = def.StepBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		items:  items,
		grants: grants,
		config: config,
		logger: logger,
		cache:  newDecisionCache(),
	}
}

// Grant creates or replaces a grant and invalidates cached decisions.
func (r *Resolver) Grant(ctx context.Context, contentRef, userID string, level Level) error {
	if !level.Valid() {
		return fmt.Errorf("graft: invalid permission level %d", int(level))
	}
	if err := r.grants.PutGrant(ctx, contentRef, userID, level); err != nil {
		return err
	}
	r.cache.invalidate()
	return nil
}

// Revoke removes a grant and invalidates cached decisions.
func (r *Resolver) Revoke(ctx context.Context, contentRef, userID string) error {
	if err := r.grants.RevokeGrant(ctx, contentRef, userID); err != nil {
		return err
	}
	r.cache.invalidate()
	return nil
}

// Invalidate drops all cached decisions. Call it after structural item
// mutations when the resolver's cache is in use; the resolver itself is
// correct without the cache either way.
func (r *Resolver) Invalidate() {
	r.cache.invalidate()
}

// HasAccess reports whether the user holds at least the required level on
// the content. A direct grant at or above the level allows immediately;
// otherwise every item placing the content is consulted, inheriting along
// the ascendant chain (nearest explicit grant wins) and requiring all
// lineages to allow at flux boundaries. Errors are returned only for
// backend failures; policy outcomes are plain booleans.
func (r *Resolver) HasAccess(ctx context.Context, contentRef, userID string, required Level) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("graft: invalid permission level %d", int(required))
	}

	k := cacheKey{contentRef: contentRef, userID: userID, level: required}
	if v, ok := r.cache.get(k); ok {
		return v, nil
	}

	allowed, err := r.resolve(ctx, contentRef, userID, required)
	if err != nil {
		return false, err
	}
	r.cache.put(k, allowed)
	return allowed, nil
}

func (r *Resolver) resolve(ctx context.Context, contentRef, userID string, required Level) (bool, error) {
	lv, ok, err := r.grants.GetGrant(ctx, contentRef, userID)
	if err != nil {
		return false, err
	}
	if ok && lv >= required {
		return true, nil
	}

	var allowed bool
	err = r.items.View(ctx, func(rd store.ItemReader) error {
		placements, err := rd.ItemsByContent(ctx, contentRef)
		if err != nil {
			return err
		}
		st := &resolveState{budget: r.config.StepBudget}
		for _, it := range placements {
			st.visited = map[string]bool{}
			ok, err := r.resolveLineage(ctx, rd, st, it, userID, required, false)
			if err != nil {
				return err
			}
			if ok {
				allowed = true
				return nil
			}
		}
		return nil
	})
	return allowed, err
}

// resolveLineage resolves access via one item's lineages. The native
// ascendant chain must allow, and when the item is a flux target every
// mounting stem's lineage must allow as well: the more restrictive side of
// a composition boundary wins.
func (r *Resolver) resolveLineage(ctx context.Context, rd store.ItemReader, st *resolveState, it *store.Item, userID string, required Level, includeSelf bool) (bool, error) {
	if st.visited[it.ID] {
		r.logger.Warn("access resolution denied on composition cycle",
			"item", it.ID,
			"user", userID,
		)
		return false, nil
	}
	st.visited[it.ID] = true

	stems, err := rd.MountingStems(ctx, it.ID)
	if err != nil {
		return false, err
	}
	var flux []*store.Item
	for _, stem := range stems {
		if stem.ID != it.Ascendant {
			flux = append(flux, stem)
		}
	}

	native, err := r.resolveChain(ctx, rd, st, it, userID, required, includeSelf)
	if err != nil || !native {
		return false, err
	}

	for _, stem := range flux {
		ok, err := r.resolveLineage(ctx, rd, st, stem, userID, required, true)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// resolveChain walks the ascendant chain looking for the nearest explicit
// grant; the first one found decides, whatever its level. No explicit grant
// within the depth limit denies.
func (r *Resolver) resolveChain(ctx context.Context, rd store.ItemReader, st *resolveState, it *store.Item, userID string, required Level, includeSelf bool) (bool, error) {
	cur := it
	if !includeSelf {
		if cur.Ascendant == "" {
			return false, nil
		}
		next, err := rd.GetItem(ctx, cur.Ascendant)
		if err != nil {
			return false, err
		}
		cur = next
	}

	for depth := 0; ; depth++ {
		if depth >= r.config.MaxDepth || !st.spend() {
			r.logger.Warn("access resolution truncated",
				"item", cur.ID,
				"user", userID,
				"depth", depth,
			)
			return false, nil
		}
		lv, ok, err := r.grants.GetGrant(ctx, cur.ContentRef, userID)
		if err != nil {
			return false, err
		}
		if ok {
			return lv >= required, nil
		}
		if cur.Ascendant == "" {
			return false, nil
		}
		next, err := rd.GetItem(ctx, cur.Ascendant)
		if err != nil {
			return false, err
		}
		cur = next
	}
}

type resolveState struct {
	steps   int
	budget  int
	visited map[string]bool
}

// spend consumes one step from the per-call budget.
func (st *resolveState) spend() bool {
	st.steps++
	return st.steps <= st.budget
}
