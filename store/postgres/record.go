package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/codec"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// CreateExecution persists a new execution.
func (s *Store) CreateExecution(ctx context.Context, exec *state.Execution) error {
	data, err := codec.JSON{}.Marshal(exec)
	if err != nil {
		return fmt.Errorf("weft/postgres: encode execution: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO weft_executions (id, workflow, version, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exec.ID.String(), exec.Workflow, exec.Version, string(exec.Status),
		data, exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return weft.ErrExecutionExists
		}
		return fmt.Errorf("weft/postgres: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*state.Execution, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM weft_executions WHERE id = $1`,
		execID.String(),
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, weft.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("weft/postgres: get execution: %w", err)
	}

	var exec state.Execution
	if err := (codec.JSON{}).Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("weft/postgres: decode execution: %w", err)
	}
	return &exec, nil
}

// UpdateExecution persists changes to an existing execution.
func (s *Store) UpdateExecution(ctx context.Context, exec *state.Execution) error {
	exec.Touch()
	data, err := codec.JSON{}.Marshal(exec)
	if err != nil {
		return fmt.Errorf("weft/postgres: encode execution: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE weft_executions
		SET status = $2, data = $3, updated_at = $4
		WHERE id = $1`,
		exec.ID.String(), string(exec.Status), data, exec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return weft.ErrExecutionNotFound
	}
	return nil
}

// ListExecutions returns executions matching the given options, newest
// first.
func (s *Store) ListExecutions(ctx context.Context, opts record.ListOpts) ([]*state.Execution, error) {
	query := `SELECT data FROM weft_executions WHERE 1=1`
	args := []any{}

	if opts.Workflow != "" {
		args = append(args, opts.Workflow)
		query += fmt.Sprintf(" AND workflow = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("weft/postgres: list executions: %w", err)
	}
	defer rows.Close()

	var execs []*state.Execution
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("weft/postgres: scan execution: %w", err)
		}
		var exec state.Execution
		if err := (codec.JSON{}).Unmarshal(data, &exec); err != nil {
			return nil, fmt.Errorf("weft/postgres: decode execution: %w", err)
		}
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

// SaveCheckpoint persists checkpoint data for a step, replacing any
// previous checkpoint for the same execution and step. Replacement
// advances the sequence so the checkpoint sorts as the latest write.
func (s *Store) SaveCheckpoint(ctx context.Context, execID id.ExecutionID, step string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO weft_checkpoints (id, execution_id, step, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, step) DO UPDATE SET
			id = EXCLUDED.id,
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			seq = nextval(pg_get_serial_sequence('weft_checkpoints', 'seq'))`,
		id.NewCheckpointID().String(), execID.String(), step, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific step. Returns
// nil data if no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, execID id.ExecutionID, step string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM weft_checkpoints WHERE execution_id = $1 AND step = $2`,
		execID.String(), step,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("weft/postgres: get checkpoint: %w", err)
	}
	return data, nil
}

// ListCheckpoints returns all checkpoints for an execution in creation
// order.
func (s *Store) ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*record.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, step, data, created_at
		FROM weft_checkpoints
		WHERE execution_id = $1
		ORDER BY seq ASC`,
		execID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("weft/postgres: list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*record.Checkpoint
	for rows.Next() {
		var (
			cpID, eID, step string
			data            []byte
			createdAt       time.Time
		)
		if err := rows.Scan(&cpID, &eID, &step, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("weft/postgres: scan checkpoint: %w", err)
		}

		parsedCPID, _ := id.ParseCheckpointID(cpID)
		parsedEID, _ := id.ParseExecutionID(eID)
		checkpoints = append(checkpoints, &record.Checkpoint{
			ID:          parsedCPID,
			ExecutionID: parsedEID,
			Step:        step,
			Data:        data,
			CreatedAt:   createdAt,
		})
	}
	return checkpoints, rows.Err()
}

// DeleteCheckpointsAfter removes all checkpoints saved after the given
// step. An empty step name removes every checkpoint for the execution.
func (s *Store) DeleteCheckpointsAfter(ctx context.Context, execID id.ExecutionID, afterStep string) error {
	if afterStep == "" {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM weft_checkpoints WHERE execution_id = $1`,
			execID.String(),
		)
		if err != nil {
			return fmt.Errorf("weft/postgres: delete checkpoints: %w", err)
		}
		return nil
	}

	var seq int64
	err := s.pool.QueryRow(ctx,
		`SELECT seq FROM weft_checkpoints WHERE execution_id = $1 AND step = $2`,
		execID.String(), afterStep,
	).Scan(&seq)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: no checkpoint for step %q", weft.ErrCheckpointNotFound, afterStep)
		}
		return fmt.Errorf("weft/postgres: delete checkpoints lookup: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM weft_checkpoints WHERE execution_id = $1 AND seq > $2`,
		execID.String(), seq,
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: delete checkpoints: %w", err)
	}
	return nil
}
