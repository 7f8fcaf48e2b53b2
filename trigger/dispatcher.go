package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/executor"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// Response summarizes a dispatched execution for the trigger surface.
type Response struct {
	ExecutionID id.ExecutionID `json:"execution_id"`
	Workflow    string         `json:"workflow"`
	Status      state.Status   `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	Suspended   []string       `json:"suspended,omitempty"`
	Failure     *state.Failure `json:"failure,omitempty"`
}

// DispatchFunc starts an execution for a trigger firing. The engine
// wires this to Dispatcher.Dispatch; runners take the function type so
// tests can substitute their own.
type DispatchFunc func(ctx context.Context, kind definition.TriggerKind, workflow string, input map[string]any) (*Response, error)

// Dispatcher resolves trigger firings to workflow executions.
type Dispatcher struct {
	workflows *definition.Registry
	executor  *executor.Executor
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(workflows *definition.Registry, exec *executor.Executor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{workflows: workflows, executor: exec, logger: logger}
}

// Dispatch starts an execution of the named workflow in response to a
// trigger of the given kind. The workflow must declare a binding for
// that kind; static binding input fills any fields the payload omits.
func (d *Dispatcher) Dispatch(ctx context.Context, kind definition.TriggerKind, workflow string, input map[string]any) (*Response, error) {
	wf, ok := d.workflows.Get(workflow)
	if !ok {
		return nil, fmt.Errorf("%w: %s", weft.ErrWorkflowNotFound, workflow)
	}
	binding, ok := wf.Binding(kind)
	if !ok {
		return nil, fmt.Errorf("%w: workflow %q, kind %q", weft.ErrTriggerNotBound, workflow, kind)
	}

	merged := make(map[string]any, len(input)+len(binding.Static))
	for k, v := range binding.Static {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}

	d.logger.Debug("dispatching trigger",
		slog.String("workflow", workflow),
		slog.String("kind", string(kind)),
	)

	exec, err := d.executor.Execute(ctx, wf.Name, wf.Version, merged)
	if err != nil {
		return nil, err
	}
	return toResponse(exec), nil
}

// Resume resumes a suspended execution, typically after an approval
// event was published for it.
func (d *Dispatcher) Resume(ctx context.Context, execID id.ExecutionID) (*Response, error) {
	exec, err := d.executor.Resume(ctx, execID)
	if err != nil {
		return nil, err
	}
	return toResponse(exec), nil
}

func toResponse(exec *state.Execution) *Response {
	return &Response{
		ExecutionID: exec.ID,
		Workflow:    exec.Workflow,
		Status:      exec.Status,
		Output:      exec.Output,
		Suspended:   exec.Suspended,
		Failure:     exec.Failure,
	}
}
