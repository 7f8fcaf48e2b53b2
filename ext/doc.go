// Package ext defines the extension system for Weft.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnStepCompleted(ctx context.Context, exec *state.Execution, ev *ext.StepEvent) error {
//	    log.Printf("step %s finished in %s", ev.Step, ev.Duration)
//	    return nil
//	}
//
// # Execution Lifecycle Hooks
//
//   - [ExecutionStarted] — an execution began
//   - [StepCompleted] — a step finished successfully
//   - [StepFailed] — a step failed terminally
//   - [ExecutionSuspended] — an execution paused awaiting input
//   - [ExecutionResumed] — a suspended execution picked back up
//   - [ExecutionCompleted] — an execution finished successfully
//   - [ExecutionFailed] — an execution failed terminally
//
// # Other Hooks
//
//   - [ScheduleFired] — a schedule tick started an execution
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
