package store

import "context"

// checkAscendantChain walks the ascendant chain above it and rejects the
// write if the chain revisits an id or cannot be bounded within the step
// budget. Runs on every write that sets an ascendant reference, before any
// mutation is applied.
func (s *Store) checkAscendantChain(ctx context.Context, r ItemReader, it *Item) error {
	seen := map[string]bool{it.ID: true}
	id := it.Ascendant
	steps := 0
	for id != "" {
		if seen[id] {
			return ErrAscendantCycle
		}
		if steps >= s.config.StepBudget {
			return ErrStepBudget
		}
		steps++
		seen[id] = true
		cur, err := r.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if cur.Ascendant == cur.ID {
			return ErrSelfReference
		}
		id = cur.Ascendant
	}
	return nil
}
