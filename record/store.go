package record

import (
	"context"

	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// ListOpts controls filtering and pagination for execution list queries.
type ListOpts struct {
	// Limit is the maximum number of executions to return. Zero means no limit.
	Limit int
	// Offset is the number of executions to skip.
	Offset int
	// Workflow filters by workflow name. Empty means all workflows.
	Workflow string
	// Status filters by execution status. Empty means all statuses.
	Status state.Status
}

// Store defines the persistence contract for executions.
type Store interface {
	// CreateExecution persists a new execution.
	CreateExecution(ctx context.Context, exec *state.Execution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, execID id.ExecutionID) (*state.Execution, error)

	// UpdateExecution persists changes to an existing execution.
	UpdateExecution(ctx context.Context, exec *state.Execution) error

	// ListExecutions returns executions matching the given options,
	// newest first.
	ListExecutions(ctx context.Context, opts ListOpts) ([]*state.Execution, error)

	// SaveCheckpoint persists checkpoint data for a step. If a
	// checkpoint already exists for the same execution/step, it is
	// replaced.
	SaveCheckpoint(ctx context.Context, execID id.ExecutionID, step string, data []byte) error

	// GetCheckpoint retrieves checkpoint data for a specific step.
	// Returns nil data if no checkpoint exists.
	GetCheckpoint(ctx context.Context, execID id.ExecutionID, step string) ([]byte, error)

	// ListCheckpoints returns all checkpoints for an execution in
	// creation order.
	ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*Checkpoint, error)

	// DeleteCheckpointsAfter removes all checkpoints created after the
	// given step name (by creation order). An empty step name removes
	// every checkpoint. Used for replay.
	DeleteCheckpointsAfter(ctx context.Context, execID id.ExecutionID, afterStep string) error
}
