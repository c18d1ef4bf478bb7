package scene

import (
	"fmt"

	"github.com/chazu/csgbox/pkg/ident"
)

// Mode is the editor's interaction mode.
type Mode int

const (
	ModeSelect Mode = iota
	ModePlaceGeometry
	ModeUnionSelect
	ModeSubtractSelect
)

func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModePlaceGeometry:
		return "place"
	case ModeUnionSelect:
		return "union-select"
	case ModeSubtractSelect:
		return "subtract-select"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m := ModeSelect; m <= ModeSubtractSelect; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("scene: unknown mode %q", s)
}

// Policy returns how many ids a click may select in this mode.
func (m Mode) Policy() Policy {
	switch m {
	case ModeUnionSelect, ModeSubtractSelect:
		return Policy{Max: 2}
	case ModePlaceGeometry:
		return Policy{}
	default:
		return Policy{Max: 1, Replace: true}
	}
}

// Policy describes selection behavior. Max == 0 disables selection.
// Replace clears the previous selection on every pick.
type Policy struct {
	Max     int
	Replace bool
}

// Selection records selected ids in the order they were picked. Combine
// uses that order to decide the left operand.
type Selection struct {
	ids []ident.ID
}

// Apply records a pick of id under policy p and reports whether the
// selection changed.
func (s *Selection) Apply(p Policy, id ident.ID) bool {
	switch {
	case p.Max == 0:
		return false
	case p.Replace:
		if len(s.ids) == 1 && s.ids[0] == id {
			return false
		}
		s.ids = append(s.ids[:0], id)
		return true
	}
	if s.Contains(id) || len(s.ids) >= p.Max {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id ident.ID) bool {
	for _, sel := range s.ids {
		if sel == id {
			return true
		}
	}
	return false
}

// IDs returns the selection in pick order.
func (s *Selection) IDs() []ident.ID {
	out := make([]ident.ID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Pair returns the first and second selected ids.
func (s *Selection) Pair() (first, second ident.ID, ok bool) {
	if len(s.ids) != 2 {
		return 0, 0, false
	}
	return s.ids[0], s.ids[1], true
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// Remove drops id from the selection if present.
func (s *Selection) Remove(id ident.ID) {
	for i, sel := range s.ids {
		if sel == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = s.ids[:0]
}
