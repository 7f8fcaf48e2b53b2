package redis

// Redis key naming conventions for weft data.
// All keys are prefixed with "weft:" to avoid collisions.

const keyPrefix = "weft:"

// ── Execution keys ──

// executionKey returns the key for an execution entity: weft:exec:{id}
func executionKey(id string) string { return keyPrefix + "exec:" + id }

// executionIDsKey is the Set tracking all execution IDs for enumeration.
const executionIDsKey = keyPrefix + "exec_ids"

// ── Checkpoint keys ──

// checkpointKey returns the key for a checkpoint: weft:checkpoint:{execID}:{step}
func checkpointKey(execID, step string) string {
	return keyPrefix + "checkpoint:" + execID + ":" + step
}

// checkpointIndexKey returns the Sorted Set key ordering an execution's
// checkpoints by save sequence.
func checkpointIndexKey(execID string) string {
	return keyPrefix + "checkpoint_idx:" + execID
}

// checkpointSeqKey returns the counter key producing checkpoint sequence
// numbers for an execution.
func checkpointSeqKey(execID string) string {
	return keyPrefix + "checkpoint_seq:" + execID
}

// ── Event keys ──

// eventKey returns the key for an event entity: weft:event:{id}
func eventKey(id string) string { return keyPrefix + "event:" + id }

// eventPendingKey returns the Sorted Set key holding unacked event IDs
// for a name, scored by publish time.
func eventPendingKey(name string) string { return keyPrefix + "events:" + name }

// ── Cache keys ──

// cacheKey returns the key for a cached step result: weft:cache:{key}
func cacheKey(key string) string { return keyPrefix + "cache:" + key }
