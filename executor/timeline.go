package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// TimelineEntry describes one step's place in an execution's history.
type TimelineEntry struct {
	Step     string          `json:"step"`
	State    state.StepState `json:"state"`
	At       *time.Time      `json:"at,omitempty"`
	CacheHit bool            `json:"-"`
}

// Timeline reconstructs the per-step history of an execution from its
// record and checkpoints, in definition order.
func (e *Executor) Timeline(ctx context.Context, execID id.ExecutionID) ([]TimelineEntry, error) {
	exec, err := e.records.GetExecution(ctx, execID)
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", execID, err)
	}
	wf, ok := e.workflows.GetVersion(exec.Workflow, exec.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s version %s", weft.ErrWorkflowNotFound, exec.Workflow, exec.Version)
	}

	checkpoints, err := e.records.ListCheckpoints(ctx, execID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for %s: %w", execID, err)
	}
	committedAt := make(map[string]time.Time, len(checkpoints))
	for _, cp := range checkpoints {
		committedAt[cp.Step] = cp.CreatedAt
	}

	suspended := make(map[string]bool, len(exec.Suspended))
	for _, s := range exec.Suspended {
		suspended[s] = true
	}

	entries := make([]TimelineEntry, 0, len(wf.Steps()))
	for _, step := range wf.Steps() {
		entry := TimelineEntry{Step: step.Name, State: state.StepPending}
		switch {
		case exec.Succeeded(step.Name):
			entry.State = state.StepSucceeded
			if at, ok := committedAt[step.Name]; ok {
				entry.At = &at
			}
		case suspended[step.Name]:
			entry.State = state.StepSuspended
		case exec.Failure != nil && exec.Failure.Step == step.Name:
			entry.State = state.StepFailed
		case exec.Status.Terminal():
			entry.State = state.StepSkipped
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReplayFrom rewinds an execution to just before the named step and
// re-runs it from there. Everything the step and its successors wrote
// is discarded; earlier checkpoints stay in place so the replay skips
// straight to the target. The execution must not be running.
func (e *Executor) ReplayFrom(ctx context.Context, execID id.ExecutionID, stepName string) (*state.Execution, error) {
	exec, err := e.records.GetExecution(ctx, execID)
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", execID, err)
	}
	if exec.Status == state.StatusRunning {
		return nil, fmt.Errorf("%w: execution %s is running", weft.ErrInvalidState, execID)
	}

	wf, ok := e.workflows.GetVersion(exec.Workflow, exec.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s version %s", weft.ErrWorkflowNotFound, exec.Workflow, exec.Version)
	}
	target := wf.Step(stepName)
	if target == nil {
		return nil, fmt.Errorf("workflow %q has no step %q", wf.Name, stepName)
	}

	// Keep only work that strictly precedes the target in definition
	// order; drop the rest of the cursor, the fields those steps wrote,
	// and their checkpoints.
	var kept []string
	dropped := make(map[string]bool)
	for _, name := range exec.Cursor {
		s := wf.Step(name)
		if s != nil && s.Index() < target.Index() {
			kept = append(kept, name)
		} else {
			dropped[name] = true
		}
	}
	exec.Cursor = kept
	for field, writer := range exec.Writers {
		if dropped[writer] {
			delete(exec.Writers, field)
			delete(exec.Fields, field)
		}
	}
	for name := range dropped {
		delete(exec.Outputs, name)
	}

	lastKept := ""
	if len(kept) > 0 {
		lastKept = kept[len(kept)-1]
	}
	if err := e.records.DeleteCheckpointsAfter(ctx, execID, lastKept); err != nil {
		return nil, fmt.Errorf("delete checkpoints for %s: %w", execID, err)
	}

	exec.Status = state.StatusRunning
	exec.Suspended = nil
	exec.Failure = nil
	exec.Output = nil
	exec.CompletedAt = nil
	exec.Touch()
	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution %s: %w", execID, err)
	}
	e.emitter.EmitExecutionResumed(ctx, exec)

	e.run(ctx, wf, exec)
	return exec, nil
}
