// Package forest holds the CSG composition forest: a set of disjoint binary
// trees whose leaves reference placed primitives and whose internal nodes
// are Union or Subtract operations. Every live primitive id appears in
// exactly one root's subtree. Nodes are moved between roots, never copied.
//
// A Forest is not safe for concurrent use; the editor session serializes
// access.
package forest
