package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/middleware"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// Emitter emits execution lifecycle events. ext.Registry satisfies this
// interface; it is declared here to break the import cycle between
// executor and engine wiring.
type Emitter interface {
	EmitExecutionStarted(ctx context.Context, exec *state.Execution)
	EmitStepCompleted(ctx context.Context, exec *state.Execution, ev *ext.StepEvent)
	EmitStepFailed(ctx context.Context, exec *state.Execution, ev *ext.StepEvent)
	EmitExecutionSuspended(ctx context.Context, exec *state.Execution, step string)
	EmitExecutionResumed(ctx context.Context, exec *state.Execution)
	EmitExecutionCompleted(ctx context.Context, exec *state.Execution, elapsed time.Duration)
	EmitExecutionFailed(ctx context.Context, exec *state.Execution, err error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithMiddleware sets the middleware chain applied around every step
// attempt.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.chain = middleware.Chain(mws...) }
}

// WithDefaultTimeout sets the step timeout used when a step declares none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.defaultTimeout = d }
}

// WithDefaultMaxRetries sets the retry count used when a step declares
// no retry policy.
func WithDefaultMaxRetries(n int) Option {
	return func(e *Executor) { e.defaultRetries = n }
}

// WithSleep overrides the retry sleep function. Tests use this to avoid
// real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// Executor runs workflow executions against a record store and cache.
type Executor struct {
	workflows *definition.Registry
	ops       *operation.Registry
	records   record.Store
	cache     cache.Store
	emitter   Emitter
	logger    *slog.Logger

	chain          middleware.Middleware
	defaultTimeout time.Duration
	defaultRetries int
	sleep          func(ctx context.Context, d time.Duration) error
}

// New creates an Executor.
func New(
	workflows *definition.Registry,
	ops *operation.Registry,
	records record.Store,
	cacheStore cache.Store,
	emitter Emitter,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		workflows:      workflows,
		ops:            ops,
		records:        records,
		cache:          cacheStore,
		emitter:        emitter,
		logger:         logger,
		chain:          middleware.Chain(),
		defaultTimeout: 5 * time.Minute,
		defaultRetries: 3,
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute starts a new execution of the named workflow. An empty
// version selects the latest registered one. The input map must supply
// every field the workflow's trigger bindings declare; the execution is
// driven to a terminal or suspended status before Execute returns.
func (e *Executor) Execute(ctx context.Context, name, version string, input map[string]any) (*state.Execution, error) {
	wf, ok := e.workflows.GetVersion(name, version)
	if !ok {
		return nil, fmt.Errorf("%w: %s", weft.ErrWorkflowNotFound, name)
	}

	for _, f := range wf.InputFields() {
		if _, present := input[f]; !present {
			return nil, &definition.ValidationError{
				Workflow: wf.Name,
				Field:    f,
				Reason:   "required input field missing",
			}
		}
	}

	exec := state.NewExecution(wf.Name, wf.Version, input)
	exec.Status = state.StatusRunning
	exec.StartedAt = time.Now().UTC()

	if err := e.records.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution for workflow %q: %w", name, err)
	}
	e.emitter.EmitExecutionStarted(ctx, exec)

	e.run(ctx, wf, exec)
	return exec, nil
}

// Resume picks up a suspended or interrupted execution. Steps in the
// durable cursor are skipped without re-invocation; the step that
// caused the suspension runs again and re-checks its awaited input.
func (e *Executor) Resume(ctx context.Context, execID id.ExecutionID) (*state.Execution, error) {
	exec, err := e.records.GetExecution(ctx, execID)
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", execID, err)
	}
	if exec.Status.Terminal() {
		return nil, fmt.Errorf("%w: execution %s is %s", weft.ErrInvalidState, execID, exec.Status)
	}

	wf, ok := e.workflows.GetVersion(exec.Workflow, exec.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s version %s", weft.ErrWorkflowNotFound, exec.Workflow, exec.Version)
	}

	exec.Status = state.StatusRunning
	exec.Suspended = nil
	if err := e.records.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution %s: %w", execID, err)
	}
	e.emitter.EmitExecutionResumed(ctx, exec)

	e.run(ctx, wf, exec)
	return exec, nil
}

// ResumeAll resumes every execution left in running state, typically
// after a crash. Suspended executions are left alone; they wait for
// their input.
func (e *Executor) ResumeAll(ctx context.Context) error {
	execs, err := e.records.ListExecutions(ctx, record.ListOpts{Status: state.StatusRunning})
	if err != nil {
		return fmt.Errorf("list running executions: %w", err)
	}

	for _, exec := range execs {
		e.logger.Info("resuming interrupted execution",
			slog.String("execution_id", exec.ID.String()),
			slog.String("workflow", exec.Workflow),
		)
		if _, resumeErr := e.Resume(ctx, exec.ID); resumeErr != nil {
			e.logger.Error("failed to resume execution",
				slog.String("execution_id", exec.ID.String()),
				slog.String("error", resumeErr.Error()),
			)
		}
	}
	return nil
}
