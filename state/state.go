// Package state owns the shared execution state object threaded between
// workflow steps. The Manager enforces the declared read (use) and write
// (set) permissions per step: steps receive immutable snapshot views
// restricted to their use set, frozen at the moment of invocation, and
// results are committed only after an operation returns successfully.
package state

import (
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/id"
)

// Status is the lifecycle status of an execution.
type Status string

// Execution statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a terminal one.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepState is the lifecycle state of a single step within an execution.
type StepState string

// Step states.
const (
	StepPending   StepState = "pending"
	StepReady     StepState = "ready"
	StepRunning   StepState = "running"
	StepSucceeded StepState = "succeeded"
	StepFailed    StepState = "failed"
	StepTimedOut  StepState = "timed_out"
	StepSkipped   StepState = "skipped"
	StepSuspended StepState = "suspended"
)

// Failure records the first fatal step error of an execution, surfaced
// through the trigger response.
type Failure struct {
	Step    string `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Execution is one run of a workflow: the current state field values,
// per-field writer log, per-step outputs, the durable cursor of
// succeeded steps, and the overall status.
type Execution struct {
	weft.Entity

	ID       id.ExecutionID `json:"id"`
	Workflow string         `json:"workflow"`
	Version  string         `json:"version"`
	Status   Status         `json:"status"`

	// Input is the resolved trigger input map.
	Input map[string]any `json:"input,omitempty"`

	// Fields holds the current value of every written state field.
	Fields map[string]any `json:"fields,omitempty"`

	// Writers records which step last wrote each field, for observability.
	Writers map[string]string `json:"writers,omitempty"`

	// Outputs holds each succeeded step's committed output map.
	Outputs map[string]map[string]any `json:"outputs,omitempty"`

	// Cursor lists succeeded step names in commit order. On resume,
	// steps in the cursor are skipped without re-invocation.
	Cursor []string `json:"cursor,omitempty"`

	// Output is the evaluated output mapping, set on completion.
	Output map[string]any `json:"output,omitempty"`

	// Suspended names the steps awaiting external input, when suspended.
	Suspended []string `json:"suspended,omitempty"`

	Failure     *Failure   `json:"failure,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewExecution creates a pending execution for the given workflow.
func NewExecution(workflow, version string, input map[string]any) *Execution {
	return &Execution{
		Entity:   weft.NewEntity(),
		ID:       id.NewExecutionID(),
		Workflow: workflow,
		Version:  version,
		Status:   StatusPending,
		Input:    input,
		Fields:   make(map[string]any),
		Writers:  make(map[string]string),
		Outputs:  make(map[string]map[string]any),
	}
}

// Succeeded reports whether the named step is in the durable cursor.
func (e *Execution) Succeeded(step string) bool {
	for _, s := range e.Cursor {
		if s == step {
			return true
		}
	}
	return false
}

// deepCopy copies nested maps and slices so snapshot views cannot alias
// live execution state. Scalars are returned as-is.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, val := range t {
			cp[k] = deepCopy(val)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, val := range t {
			cp[i] = deepCopy(val)
		}
		return cp
	default:
		return v
	}
}
