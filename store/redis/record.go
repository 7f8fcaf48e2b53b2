package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/codec"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// CreateExecution persists a new execution.
func (s *Store) CreateExecution(ctx context.Context, exec *state.Execution) error {
	eID := exec.ID.String()
	key := executionKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("weft/redis: create execution exists: %w", err)
	}
	if exists > 0 {
		return weft.ErrExecutionExists
	}

	m, err := executionToMap(exec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, executionIDsKey, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("weft/redis: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*state.Execution, error) {
	vals, err := s.client.HGetAll(ctx, executionKey(execID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("weft/redis: get execution: %w", err)
	}
	if len(vals) == 0 {
		return nil, weft.ErrExecutionNotFound
	}
	return mapToExecution(vals)
}

// UpdateExecution persists changes to an existing execution.
func (s *Store) UpdateExecution(ctx context.Context, exec *state.Execution) error {
	key := executionKey(exec.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("weft/redis: update execution exists: %w", err)
	}
	if exists == 0 {
		return weft.ErrExecutionNotFound
	}

	exec.Touch()
	m, err := executionToMap(exec)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return fmt.Errorf("weft/redis: update execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions matching the given options, newest
// first.
func (s *Store) ListExecutions(ctx context.Context, opts record.ListOpts) ([]*state.Execution, error) {
	ids, err := s.client.SMembers(ctx, executionIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("weft/redis: list executions smembers: %w", err)
	}

	var execs []*state.Execution
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, executionKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToExecution(vals)
		if convErr != nil {
			continue
		}
		if opts.Workflow != "" && e.Workflow != opts.Workflow {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		execs = append(execs, e)
	}

	sort.Slice(execs, func(i, j int) bool {
		return execs[i].CreatedAt.After(execs[j].CreatedAt)
	})

	if opts.Offset > 0 && opts.Offset < len(execs) {
		execs = execs[opts.Offset:]
	} else if opts.Offset >= len(execs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(execs) {
		execs = execs[:opts.Limit]
	}
	return execs, nil
}

// SaveCheckpoint persists checkpoint data for a step, replacing any
// previous checkpoint for the same execution and step.
func (s *Store) SaveCheckpoint(ctx context.Context, execID id.ExecutionID, step string, data []byte) error {
	eID := execID.String()

	seq, err := s.client.Incr(ctx, checkpointSeqKey(eID)).Result()
	if err != nil {
		return fmt.Errorf("weft/redis: checkpoint seq: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, checkpointKey(eID, step),
		"id", id.NewCheckpointID().String(),
		"execution_id", eID,
		"step", step,
		"data", string(data),
		"created_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, checkpointIndexKey(eID), goredis.Z{Score: float64(seq), Member: step})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("weft/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific step. Returns
// nil data if no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, execID id.ExecutionID, step string) ([]byte, error) {
	data, err := s.client.HGet(ctx, checkpointKey(execID.String(), step), "data").Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("weft/redis: get checkpoint: %w", err)
	}
	return []byte(data), nil
}

// ListCheckpoints returns all checkpoints for an execution in creation
// order.
func (s *Store) ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*record.Checkpoint, error) {
	eID := execID.String()
	steps, err := s.client.ZRange(ctx, checkpointIndexKey(eID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("weft/redis: list checkpoints: %w", err)
	}

	var checkpoints []*record.Checkpoint
	for _, step := range steps {
		vals, getErr := s.client.HGetAll(ctx, checkpointKey(eID, step)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}

		cpID, _ := id.ParseCheckpointID(vals["id"])
		eIDParsed, _ := id.ParseExecutionID(vals["execution_id"])
		createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"])

		checkpoints = append(checkpoints, &record.Checkpoint{
			ID:          cpID,
			ExecutionID: eIDParsed,
			Step:        vals["step"],
			Data:        []byte(vals["data"]),
			CreatedAt:   createdAt,
		})
	}
	return checkpoints, nil
}

// DeleteCheckpointsAfter removes all checkpoints saved after the given
// step. An empty step name removes every checkpoint for the execution.
func (s *Store) DeleteCheckpointsAfter(ctx context.Context, execID id.ExecutionID, afterStep string) error {
	eID := execID.String()
	idxKey := checkpointIndexKey(eID)

	var doomed []string
	var err error
	if afterStep == "" {
		doomed, err = s.client.ZRange(ctx, idxKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("weft/redis: delete checkpoints range: %w", err)
		}
	} else {
		score, scoreErr := s.client.ZScore(ctx, idxKey, afterStep).Result()
		if scoreErr != nil {
			if scoreErr == goredis.Nil {
				return fmt.Errorf("%w: no checkpoint for step %q", weft.ErrCheckpointNotFound, afterStep)
			}
			return fmt.Errorf("weft/redis: delete checkpoints zscore: %w", scoreErr)
		}
		doomed, err = s.client.ZRangeByScore(ctx, idxKey, &goredis.ZRangeBy{
			Min: "(" + strconv.FormatFloat(score, 'f', -1, 64),
			Max: "+inf",
		}).Result()
		if err != nil {
			return fmt.Errorf("weft/redis: delete checkpoints zrangebyscore: %w", err)
		}
	}

	pipe := s.client.TxPipeline()
	for _, step := range doomed {
		pipe.Del(ctx, checkpointKey(eID, step))
		pipe.ZRem(ctx, idxKey, step)
	}
	if afterStep == "" {
		pipe.Del(ctx, idxKey, checkpointSeqKey(eID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("weft/redis: delete checkpoints: %w", err)
	}
	return nil
}

// ── helpers ──

func executionToMap(exec *state.Execution) (map[string]interface{}, error) {
	data, err := codec.JSON{}.Marshal(exec)
	if err != nil {
		return nil, fmt.Errorf("weft/redis: encode execution: %w", err)
	}
	return map[string]interface{}{
		"id":         exec.ID.String(),
		"workflow":   exec.Workflow,
		"status":     string(exec.Status),
		"created_at": exec.CreatedAt.Format(time.RFC3339Nano),
		"data":       string(data),
	}, nil
}

func mapToExecution(m map[string]string) (*state.Execution, error) {
	var exec state.Execution
	if err := (codec.JSON{}).Unmarshal([]byte(m["data"]), &exec); err != nil {
		return nil, fmt.Errorf("weft/redis: decode execution: %w", err)
	}
	return &exec, nil
}
