// Package weft provides a declarative workflow execution engine for Go.
// Workflows are defined as YAML documents describing a graph of operation
// steps; the engine resolves dependencies, executes steps sequentially or
// in parallel, threads a shared append-only state object between them,
// caches step outputs, and checkpoints progress so executions can suspend
// and resume across process boundaries.
//
// Weft is designed as a library, not a service. Import it, register
// operation handlers and workflow definitions, pick a store, and start
// the engine:
//
//	s := memory.New()
//	eng, err := engine.Build(s)
//	wf, err := eng.RegisterWorkflow(yamlBytes)
//	resp, err := eng.Dispatcher().Dispatch(ctx, definition.TriggerManual, "score-orders", input)
//
// # Architecture
//
// Weft follows a composable store pattern where each subsystem (record,
// event, cache) defines its own store interface. A single backend
// implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package weft
