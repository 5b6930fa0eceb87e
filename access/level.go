// Package access resolves content permissions over a graft item graph.
//
// Grants are (content ref, user id, level) triples keyed by content, not by
// item, since one content unit may be reachable through several items.
// Resolution consults direct grants first, then inherits along the
// ascendant chain (nearest explicit grant wins), and at flux boundaries
// requires both the native lineage and every mounting lineage to allow
// (the more restrictive side wins). Unresolvable or truncated lookups deny.
package access

import "fmt"

// Level is an ordered capability level.
type Level int

const (
	// LevelView permits reading content.
	LevelView Level = iota + 1

	// LevelEdit permits modifying content.
	LevelEdit

	// LevelAdmin permits managing content and its grants.
	LevelAdmin
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelView && l <= LevelAdmin
}

// ParseLevel parses a wire name into a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "view":
		return LevelView, nil
	case "edit":
		return LevelEdit, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return 0, fmt.Errorf("graft: unknown permission level %q", s)
	}
}
