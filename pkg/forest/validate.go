package forest

import (
	"fmt"

	"github.com/chazu/csgbox/pkg/ident"
)

// ValidationError describes one broken forest invariant. A non-empty
// result from Validate indicates a bug in mutation logic, not bad input.
type ValidationError struct {
	ID      ident.ID // offending node or primitive id
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("node %s: %s", e.ID, e.Message)
}

// Validate checks that the forest is a set partition of live: every live
// primitive sits in exactly one leaf, no leaf references a primitive that
// is not live, and no id occurs twice anywhere in the forest (which also
// rules out an operation sharing an id with a descendant). It never
// mutates the forest.
func (f *Forest) Validate(live []ident.ID) []ValidationError {
	var errs []ValidationError

	liveSet := make(map[ident.ID]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}

	seen := make(map[ident.ID]int)     // node id -> occurrences
	leafRoot := make(map[ident.ID]int) // leaf id -> root index

	for ri, r := range f.roots {
		Walk(r, func(n Node) bool {
			id := NodeID(n)
			seen[id]++
			if seen[id] == 2 {
				errs = append(errs, ValidationError{
					ID:      id,
					Message: "id occurs more than once in the forest",
				})
			}
			if g, ok := n.(*Geometry); ok {
				if prev, dup := leafRoot[g.ID]; dup && prev != ri {
					errs = append(errs, ValidationError{
						ID:      g.ID,
						Message: fmt.Sprintf("leaf appears under roots %d and %d", prev, ri),
					})
				}
				leafRoot[g.ID] = ri
				if !liveSet[g.ID] {
					errs = append(errs, ValidationError{
						ID:      g.ID,
						Message: "leaf references a primitive that is not live",
					})
				}
			}
			return true
		})
	}

	for _, id := range live {
		if _, ok := leafRoot[id]; !ok {
			errs = append(errs, ValidationError{
				ID:      id,
				Message: "live primitive is missing from the forest",
			})
		}
	}

	return errs
}
