// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ record.Store = (*Store)(nil)
	_ event.Store  = (*Store)(nil)
	_ cache.Store  = (*Store)(nil)
)

// checkpointRow pairs a checkpoint with its insertion sequence so list
// and truncate operations see creation order.
type checkpointRow struct {
	seq int
	cp  *record.Checkpoint
}

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	executions  map[string]*state.Execution
	checkpoints map[string]*checkpointRow // key: "execID:step"
	seq         int
	events      map[string]*event.Event
	entries     map[string]*cache.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		executions:  make(map[string]*state.Execution),
		checkpoints: make(map[string]*checkpointRow),
		events:      make(map[string]*event.Event),
		entries:     make(map[string]*cache.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Record Store
// ──────────────────────────────────────────────────

// CreateExecution persists a new execution.
func (m *Store) CreateExecution(_ context.Context, exec *state.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := exec.ID.String()
	if _, exists := m.executions[key]; exists {
		return weft.ErrExecutionExists
	}
	cp := *exec
	m.executions[key] = &cp
	return nil
}

// GetExecution retrieves an execution by ID.
func (m *Store) GetExecution(_ context.Context, execID id.ExecutionID) (*state.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exec, ok := m.executions[execID.String()]
	if !ok {
		return nil, weft.ErrExecutionNotFound
	}
	cp := *exec
	return &cp, nil
}

// UpdateExecution persists changes to an existing execution.
func (m *Store) UpdateExecution(_ context.Context, exec *state.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := exec.ID.String()
	if _, ok := m.executions[key]; !ok {
		return weft.ErrExecutionNotFound
	}
	cp := *exec
	m.executions[key] = &cp
	return nil
}

// ListExecutions returns executions matching the options, newest first.
func (m *Store) ListExecutions(_ context.Context, opts record.ListOpts) ([]*state.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*state.Execution, 0, len(m.executions))
	for _, exec := range m.executions {
		if opts.Workflow != "" && exec.Workflow != opts.Workflow {
			continue
		}
		if opts.Status != "" && exec.Status != opts.Status {
			continue
		}
		cp := *exec
		matches = append(matches, &cp)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// SaveCheckpoint persists checkpoint data for a step, replacing any
// existing checkpoint for the same execution/step.
func (m *Store) SaveCheckpoint(_ context.Context, execID id.ExecutionID, step string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := execID.String() + ":" + step
	m.seq++
	m.checkpoints[key] = &checkpointRow{
		seq: m.seq,
		cp: &record.Checkpoint{
			ID:          id.NewCheckpointID(),
			ExecutionID: execID,
			Step:        step,
			Data:        data,
			CreatedAt:   time.Now().UTC(),
		},
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a step. Returns nil data
// if no checkpoint exists.
func (m *Store) GetCheckpoint(_ context.Context, execID id.ExecutionID, step string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.checkpoints[execID.String()+":"+step]
	if !ok {
		return nil, nil
	}
	return row.cp.Data, nil
}

// ListCheckpoints returns all checkpoints for an execution in creation order.
func (m *Store) ListCheckpoints(_ context.Context, execID id.ExecutionID) ([]*record.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := execID.String()
	rows := make([]*checkpointRow, 0)
	for _, row := range m.checkpoints {
		if row.cp.ExecutionID.String() == prefix {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	cps := make([]*record.Checkpoint, len(rows))
	for i, row := range rows {
		cps[i] = row.cp
	}
	return cps, nil
}

// DeleteCheckpointsAfter removes checkpoints created after the given
// step's checkpoint. An empty step name removes every checkpoint for
// the execution.
func (m *Store) DeleteCheckpointsAfter(_ context.Context, execID id.ExecutionID, afterStep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	execKey := execID.String()
	cutoff := 0
	if afterStep != "" {
		row, ok := m.checkpoints[execKey+":"+afterStep]
		if !ok {
			return weft.ErrCheckpointNotFound
		}
		cutoff = row.seq
	}

	for key, row := range m.checkpoints {
		if row.cp.ExecutionID.String() == execKey && row.seq > cutoff {
			delete(m.checkpoints, key)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// PublishEvent persists a new event.
func (m *Store) PublishEvent(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[evt.ID.String()] = evt
	return nil
}

// PeekEvent returns the oldest unacked event matching the name, or nil.
func (m *Store) PeekEvent(_ context.Context, name string) (*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *event.Event
	for _, evt := range m.events {
		if evt.Name != name || evt.Acked {
			continue
		}
		if oldest == nil || evt.CreatedAt.Before(oldest.CreatedAt) {
			oldest = evt
		}
	}
	return oldest, nil
}

// SubscribeEvent waits for an unacked event matching the given name.
// Poll-based: loops with 10ms sleep until an event is available or timeout.
func (m *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		if evt, _ := m.PeekEvent(ctx, name); evt != nil {
			return evt, nil
		}

		// Brief sleep to avoid busy-waiting.
		time.Sleep(10 * time.Millisecond)
	}
}

// AckEvent acknowledges an event, marking it as consumed.
func (m *Store) AckEvent(_ context.Context, eventID id.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	evt, ok := m.events[eventID.String()]
	if !ok {
		return weft.ErrEventNotFound
	}
	evt.Acked = true
	return nil
}

// ──────────────────────────────────────────────────
// Cache Store
// ──────────────────────────────────────────────────

// Lookup returns the entry for the key. Expired entries are deleted on
// read and reported as absent.
func (m *Store) Lookup(_ context.Context, key string) (*cache.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	cp := *entry
	return &cp, true, nil
}

// Put stores a cache entry, replacing any existing entry for the key.
func (m *Store) Put(_ context.Context, entry *cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.entries[entry.Key] = &cp
	return nil
}

// Delete removes a cache entry.
func (m *Store) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Sweep removes expired entries and returns how many were reclaimed.
func (m *Store) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	n := 0
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}
