package ident

import (
	"errors"
	"fmt"
	"sync"
)

// Bits is the width of an identifier.
const Bits = 24

// Limit is the first value that is not a valid identifier.
const Limit = 1 << Bits

// mask24 keeps the low 24 bits of a product.
const mask24 = Limit - 1

var (
	// ErrOutOfRange is returned when a value does not fit in 24 bits.
	ErrOutOfRange = errors.New("ident: value out of 24-bit range")

	// ErrExhausted is returned by an Allocator that has handed out every id.
	ErrExhausted = errors.New("ident: identifier space exhausted")
)

// ID identifies a primitive or an operation. Values are always below Limit;
// the only way to build one from an arbitrary integer is New.
type ID uint32

// New validates v and returns it as an ID.
func New(v uint32) (ID, error) {
	if v >= Limit {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, v)
	}
	return ID(v), nil
}

// Must is like New but panics on out-of-range input. Intended for constants
// and tests.
func Must(v uint32) ID {
	id, err := New(v)
	if err != nil {
		panic(err)
	}
	return id
}

// Uint32 returns the raw value.
func (id ID) Uint32() uint32 { return uint32(id) }

func (id ID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// Background is the id a white pixel decodes to. Picking targets clear to
// white, so Allocators never hand it out.
var Background = DecodeBytes([3]uint8{0xff, 0xff, 0xff})

// Allocator hands out identifiers from one monotonic counter. A single
// Allocator must be shared by primitive placement and combine so that ids
// stay unique across both. It is safe for concurrent use.
type Allocator struct {
	mu   sync.Mutex
	next uint32
}

// NewAllocator returns an allocator whose first id is base.
func NewAllocator(base ID) *Allocator {
	return &Allocator{next: uint32(base)}
}

// Next returns the next identifier.
func (a *Allocator) Next() (ID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next >= Limit {
		return 0, ErrExhausted
	}
	id := ID(a.next)
	a.next++
	if id == Background {
		if a.next >= Limit {
			return 0, ErrExhausted
		}
		id = ID(a.next)
		a.next++
	}
	return id, nil
}
