// Package executor drives workflow executions: it walks the validated
// flow in definition order, runs parallel group members concurrently,
// resolves step inputs against frozen state snapshots, consults the
// cache, applies per-step retry and timeout policies, commits results
// through the state manager one at a time, and checkpoints after every
// commit so executions survive crashes and suspensions.
//
// Parallel siblings are never cancelled when one of them fails; every
// member runs to completion and the earliest fatal error in definition
// order decides the execution's failure. A step awaiting input blocks
// only its dependents; independent steps still run before the execution
// parks as suspended.
package executor
