// Package operation defines the pluggable unit of work a workflow step
// invokes. Handlers are registered by kind; the executor looks up the
// kind named by a step, resolves the step's input expressions, and
// calls the handler with a fully materialized request.
//
// Handlers never touch workflow state directly. They return an output
// map, and the executor validates it against the step's declared writes
// before anything is committed.
package operation
