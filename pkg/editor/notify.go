package editor

import (
	"fmt"

	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/scene"
)

// NoteKind identifies a Notification.
type NoteKind int

const (
	NotePlaced NoteKind = iota
	NotePicked
	NoteCombined
	NoteCombineFailed
	NoteDeleted
	NoteEdited
	NoteModeChanged
	NoteReset
)

func (k NoteKind) String() string {
	switch k {
	case NotePlaced:
		return "placed"
	case NotePicked:
		return "picked"
	case NoteCombined:
		return "combined"
	case NoteCombineFailed:
		return "combine-failed"
	case NoteDeleted:
		return "deleted"
	case NoteEdited:
		return "edited"
	case NoteModeChanged:
		return "mode-changed"
	case NoteReset:
		return "reset"
	default:
		return fmt.Sprintf("NoteKind(%d)", int(k))
	}
}

// Notification reports a state change to the UI. Fields that do not apply
// to Kind are zero.
type Notification struct {
	Kind  NoteKind
	ID    ident.ID    // placed, picked or new operation id
	Op    forest.Kind // combine kind
	IDs   []ident.ID  // deleted primitives
	Mode  scene.Mode
	Frame uint64
	Err   error
}

// Notifier receives notifications. It is called without the session lock
// held, so it may call back into the session.
type Notifier func(Notification)
