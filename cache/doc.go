// Package cache provides result caching for workflow steps.
//
// Cache keys are derived from the canonical hash of everything that can
// influence a step's output: the workflow identity, the step name, the
// resolved input values, and the state fields the step reads. Two
// invocations with identical influencing values share a key; a change to
// any of them produces a different key.
//
// Entries expire lazily on lookup. A Sweeper can additionally reclaim
// expired entries in the background so stores do not grow unbounded.
package cache
