package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/codec"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/state"
)

// stepResult carries one step's outcome out of a group before the
// sequential commit phase.
type stepResult struct {
	step     *definition.Step
	output   map[string]any
	err      error
	duration time.Duration
	attempt  int
	cacheHit bool
	cacheKey string
}

// run drives the execution through the flow entries. Each entry's steps
// execute (concurrently for parallel groups), then their results commit
// sequentially in definition order. A step awaiting input blocks only
// its dependents; independent downstream steps still run before the
// execution parks as suspended. The run stops at the first fatal error;
// otherwise it evaluates the output mapping and completes.
func (e *Executor) run(ctx context.Context, wf *definition.Workflow, exec *state.Execution) {
	runStart := time.Now()
	mgr := state.NewManager(exec, wf.State)

	var awaiting []string
	blocked := make(map[string]bool)

	for _, entry := range wf.Flow {
		var pending []*definition.Step
		for _, s := range entry.Steps() {
			if exec.Succeeded(s.Name) {
				continue
			}
			if dependsOnBlocked(wf, s.Name, blocked) {
				blocked[s.Name] = true
				continue
			}
			pending = append(pending, s)
		}
		if len(pending) == 0 {
			continue
		}

		results := e.runGroup(ctx, wf, exec, mgr, pending)

		// Commit successful members first, in definition order, so the
		// state and cursor reflect every sibling that finished even when
		// another sibling failed. A failed commit is the step's failure.
		for i := range results {
			res := &results[i]
			if res.err != nil {
				continue
			}
			if commitErr := e.commit(ctx, wf, exec, mgr, res); commitErr != nil {
				res.err = commitErr
			}
		}

		// The earliest fatal error in definition order decides; a failed
		// sibling outranks a suspended one.
		var fatal *stepResult
		for i := range results {
			res := &results[i]
			if res.err == nil {
				continue
			}
			if errors.Is(res.err, operation.ErrAwaitInput) {
				awaiting = append(awaiting, res.step.Name)
				blocked[res.step.Name] = true
				continue
			}
			if fatal == nil {
				fatal = res
			}
		}
		if fatal != nil {
			e.fail(ctx, exec, fatal)
			return
		}
	}

	if len(awaiting) > 0 {
		e.suspend(ctx, exec, awaiting)
		return
	}

	e.complete(ctx, wf, exec, mgr, runStart)
}

// dependsOnBlocked reports whether any of the step's dependencies is
// parked behind an awaiting step. Blocking propagates transitively as
// the flow is walked: a blocked step is itself added to the set before
// later entries are examined.
func dependsOnBlocked(wf *definition.Workflow, step string, blocked map[string]bool) bool {
	if len(blocked) == 0 {
		return false
	}
	for _, dep := range wf.Deps(step) {
		if blocked[dep] {
			return true
		}
	}
	return false
}

// runGroup executes the pending steps of one flow entry. Members run
// concurrently and all run to completion; a failing member never
// cancels its siblings. Results come back in definition order.
func (e *Executor) runGroup(ctx context.Context, wf *definition.Workflow, exec *state.Execution, mgr *state.Manager, steps []*definition.Step) []stepResult {
	results := make([]stepResult, len(steps))
	if len(steps) == 1 {
		results[0] = e.runStep(ctx, wf, exec, mgr, steps[0])
		return results
	}

	var wg sync.WaitGroup
	for i, s := range steps {
		wg.Add(1)
		go func(i int, s *definition.Step) {
			defer wg.Done()
			results[i] = e.runStep(ctx, wf, exec, mgr, s)
		}(i, s)
	}
	wg.Wait()
	return results
}

// commit applies one successful step result: state commit, checkpoint,
// durable cursor update, cache store, lifecycle event.
func (e *Executor) commit(ctx context.Context, wf *definition.Workflow, exec *state.Execution, mgr *state.Manager, res *stepResult) error {
	step := res.step

	if err := mgr.Commit(step.Name, step.Set, res.output); err != nil {
		return err
	}

	data, err := codec.Msgpack{}.Marshal(res.output)
	if err != nil {
		return err
	}
	if err := e.records.SaveCheckpoint(ctx, exec.ID, step.Name, data); err != nil {
		return err
	}
	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		return err
	}

	if res.cacheKey != "" && !res.cacheHit && e.cache != nil {
		entry := &cache.Entry{
			Key:      res.cacheKey,
			Workflow: wf.Name,
			Step:     step.Name,
			Output:   res.output,
			StoredAt: time.Now().UTC(),
			TTL:      step.Cache.TTL,
		}
		if putErr := e.cache.Put(ctx, entry); putErr != nil {
			e.logger.Warn("cache store error",
				slog.String("step", step.Name),
				slog.String("error", putErr.Error()),
			)
		}
	}

	e.emitter.EmitStepCompleted(ctx, exec, &ext.StepEvent{
		Step:     step.Name,
		State:    state.StepSucceeded,
		Attempt:  res.attempt,
		Duration: res.duration,
		CacheHit: res.cacheHit,
	})
	return nil
}

// fail marks the execution failed with the earliest fatal step error.
func (e *Executor) fail(ctx context.Context, exec *state.Execution, res *stepResult) {
	now := time.Now().UTC()
	exec.Status = state.StatusFailed
	exec.CompletedAt = &now
	exec.Failure = &state.Failure{
		Step:    res.step.Name,
		Kind:    failureKind(res.err),
		Message: res.err.Error(),
	}
	exec.Touch()

	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to update execution as failed",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	stepState := state.StepFailed
	var te *operation.TimeoutError
	if errors.As(res.err, &te) {
		stepState = state.StepTimedOut
	}
	e.emitter.EmitStepFailed(ctx, exec, &ext.StepEvent{
		Step:     res.step.Name,
		State:    stepState,
		Attempt:  res.attempt,
		Duration: res.duration,
		Err:      res.err,
	})
	e.emitter.EmitExecutionFailed(ctx, exec, res.err)
}

// suspend parks the execution until the awaited input arrives.
func (e *Executor) suspend(ctx context.Context, exec *state.Execution, steps []string) {
	exec.Status = state.StatusSuspended
	exec.Suspended = steps
	exec.Touch()

	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to update execution as suspended",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	for _, s := range steps {
		e.emitter.EmitExecutionSuspended(ctx, exec, s)
	}
}

// complete evaluates the output mapping and marks the execution done.
func (e *Executor) complete(ctx context.Context, wf *definition.Workflow, exec *state.Execution, mgr *state.Manager, runStart time.Time) {
	fields := make([]string, 0, len(wf.State))
	for f := range wf.State {
		fields = append(fields, f)
	}
	view := mgr.Snapshot(fields)

	output := make(map[string]any, len(wf.Output))
	for name, ex := range wf.Output {
		v, err := ex.Resolve(view)
		if err != nil {
			e.fail(ctx, exec, &stepResult{
				step: &definition.Step{Name: "output"},
				err: &definition.ValidationError{
					Workflow: wf.Name,
					Field:    name,
					Reason:   err.Error(),
				},
			})
			return
		}
		output[name] = v
	}

	now := time.Now().UTC()
	exec.Output = output
	exec.Status = state.StatusCompleted
	exec.CompletedAt = &now
	exec.Touch()

	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to update execution as completed",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	e.emitter.EmitExecutionCompleted(ctx, exec, time.Since(runStart))
}

// failureKind maps an error to the taxonomy surfaced on the execution
// record.
func failureKind(err error) string {
	var (
		ve *definition.ValidationError
		ce *definition.ConflictError
		se *operation.SchemaError
		te *operation.TimeoutError
		cv *state.ConcurrencyViolation
		oe *operation.Error
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &se):
		return "schema_mismatch"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &cv):
		return "concurrency_violation"
	case errors.As(err, &oe):
		return "operation"
	default:
		return "operation"
	}
}
