// Package ident defines the 24-bit object identifier shared by primitives
// and CSG operations, the monotonic allocator that hands them out, and the
// reversible identifier <-> color codec used by the picking pass.
package ident
