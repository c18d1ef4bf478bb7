package editor

import (
	"errors"
	"fmt"

	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/scene"
)

// selectMode is the mode a combine of kind is requested from.
func selectMode(kind forest.Kind) scene.Mode {
	if kind == forest.KindSubtract {
		return scene.ModeSubtractSelect
	}
	return scene.ModeUnionSelect
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, forest.ErrAlreadyCombined):
		return "already_combined"
	default:
		return "invalid"
	}
}

// Combine merges the hierarchies holding a and b under a new operation.
// a is the left operand and donates the color. It returns the new
// operation id, or an error wrapping ErrAlreadyCombined when a and b
// already share a hierarchy.
func (s *Session) Combine(kind forest.Kind, a, b ident.ID) (ident.ID, error) {
	s.mu.Lock()
	id, err := s.combineLocked(kind, a, b)
	s.mu.Unlock()
	s.publishCombine(kind, a, b, id, err)
	return id, err
}

// RequestCombine combines the two selected boxes, first selected on the
// left. It must be called from the select mode matching kind. Once two
// boxes are selected the request is final: whether it succeeds or fails
// with ErrAlreadyCombined, the selection is cleared and the session
// returns to select mode.
func (s *Session) RequestCombine(kind forest.Kind) (ident.ID, error) {
	s.mu.Lock()
	if s.mode != selectMode(kind) {
		mode := s.mode
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s requested in %s mode", ErrWrongMode, kind, mode)
	}
	a, b, ok := s.sel.Pair()
	if !ok {
		n := s.sel.Len()
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: have %d", ErrSelectionIncomplete, n)
	}
	id, err := s.combineLocked(kind, a, b)
	s.sel.Clear()
	s.mode = scene.ModeSelect
	s.mu.Unlock()

	s.publishCombine(kind, a, b, id, err)
	s.publish(Notification{Kind: NoteModeChanged, Mode: scene.ModeSelect})
	return id, err
}

func (s *Session) combineLocked(kind forest.Kind, a, b ident.ID) (ident.ID, error) {
	if !s.store.Has(a) || !s.store.Has(b) {
		err := fmt.Errorf("%w: %s of %s and %s", ErrUnknownID, kind, a, b)
		s.metrics.Combines.WithLabelValues(kind.String(), outcome(err)).Inc()
		return 0, err
	}
	reject := func(err error) (ident.ID, error) {
		s.metrics.Combines.WithLabelValues(kind.String(), outcome(err)).Inc()
		s.log.Info("combine rejected", "kind", kind, "a", a, "b", b, "err", err)
		return 0, err
	}
	// Rejected combines must not consume an id.
	if err := s.forest.CanCombine(kind, a, b); err != nil {
		return reject(err)
	}
	next, err := s.nextIDLocked()
	if err != nil {
		return 0, fmt.Errorf("editor: combine: %w", err)
	}
	id, err := s.forest.Combine(kind, a, b, next, s.store.Color)
	if err != nil {
		return reject(err)
	}
	s.metrics.Combines.WithLabelValues(kind.String(), outcome(nil)).Inc()
	s.log.Info("combined", "kind", kind, "a", a, "b", b, "op", id, "roots", s.forest.Len())
	s.checkLocked("combine")
	return id, nil
}

func (s *Session) publishCombine(kind forest.Kind, a, b, id ident.ID, err error) {
	if err != nil {
		s.publish(Notification{Kind: NoteCombineFailed, Op: kind, IDs: []ident.ID{a, b}, Err: err})
		return
	}
	s.publish(Notification{Kind: NoteCombined, Op: kind, ID: id, IDs: []ident.ID{a, b}})
}
