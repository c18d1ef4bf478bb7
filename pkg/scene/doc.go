// Package scene holds the editor state that surrounds the composition
// forest: the primitive store, the ordered selection record, the control
// mode and the orbit camera used for placement and picking projection.
package scene
