package ext

import (
	"context"
	"time"

	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// StepEvent describes the outcome of one step for observers.
type StepEvent struct {
	Step     string
	State    state.StepState
	Attempt  int
	Duration time.Duration
	CacheHit bool
	Err      error
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called when an execution begins.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, exec *state.Execution) error
}

// StepCompleted is called after a step commits successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, exec *state.Execution, ev *StepEvent) error
}

// StepFailed is called when a step fails with no retries remaining.
type StepFailed interface {
	OnStepFailed(ctx context.Context, exec *state.Execution, ev *StepEvent) error
}

// ExecutionSuspended is called when an execution pauses awaiting input.
type ExecutionSuspended interface {
	OnExecutionSuspended(ctx context.Context, exec *state.Execution, step string) error
}

// ExecutionResumed is called when a suspended execution picks back up.
type ExecutionResumed interface {
	OnExecutionResumed(ctx context.Context, exec *state.Execution) error
}

// ExecutionCompleted is called after an execution finishes successfully.
type ExecutionCompleted interface {
	OnExecutionCompleted(ctx context.Context, exec *state.Execution, elapsed time.Duration) error
}

// ExecutionFailed is called when an execution fails terminally.
type ExecutionFailed interface {
	OnExecutionFailed(ctx context.Context, exec *state.Execution, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// ScheduleFired is called when a schedule tick starts an execution.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, workflow string, execID id.ExecutionID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
