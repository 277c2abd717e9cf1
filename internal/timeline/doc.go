// Package timeline implements the tree of schedulable nodes that make up a run.
//
// A Timeline is a composite node: it owns an ordered list of child
// descriptions, generates an iteration order over its timeline variables and
// runs its children one at a time, depth first. A Trial is a leaf: it resolves
// its parameters, hands them to a plugin and turns the plugin's data into one
// result record.
//
// Node type is decided structurally when a child is instantiated: a
// description with a non-nil "timeline" key, or a bare list, becomes a
// Timeline; anything else becomes a Trial.
//
// PARAMETER RESOLUTION:
//
// Every node owns a paramcache.Cache over a deep copy of its description.
// GetParameterValue looks a path up in the node's own description and falls
// back to the parent chain when it is absent. Zero-argument functions are
// invoked lazily and Variable references are bound to the nearest enclosing
// Timeline's current iteration. Resolved values are cached until
// ResetParameterValueCache, which a Trial calls when it finishes so the next
// iteration sees fresh values. Structural keys (see StructuralKeys) are never
// inherited by a Trial.
//
// CONCURRENCY:
//
// A run advances on exactly one goroutine. Pause, Resume and Abort may be
// called from any goroutine; they take effect at the next child boundary.
// All nodes of one tree share a single mutex guarding status, indices, the
// current child and variable bindings. The mutex is never held while user
// callbacks, plugins or blocking waits run.
package timeline
