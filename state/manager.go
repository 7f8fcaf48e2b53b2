package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weftlabs/weft/definition"
)

// ConcurrencyViolation reports a commit attempted while another commit
// was in flight on the same execution. Given the load-time disjointness
// checks and the executor's commit serialization this is unreachable;
// observing it is a fatal internal-invariant failure, not a user error.
type ConcurrencyViolation struct {
	Execution string
	Step      string
}

func (e *ConcurrencyViolation) Error() string {
	return fmt.Sprintf(
		"state: concurrent commit on execution %s by step %q (internal invariant violated)",
		e.Execution, e.Step,
	)
}

// Manager owns the state of a single execution for its lifetime. The
// graph executor is the only caller; steps never touch the Manager
// directly and only ever see restricted snapshot views.
type Manager struct {
	mu         sync.Mutex
	committing atomic.Bool
	exec       *Execution
	schema     definition.Schema
}

// NewManager creates a Manager over the given execution and schema.
func NewManager(exec *Execution, schema definition.Schema) *Manager {
	return &Manager{exec: exec, schema: schema}
}

// Execution returns the managed execution.
func (m *Manager) Execution() *Execution { return m.exec }

// Snapshot returns an immutable view restricted to the given use fields
// plus every committed step output. The view is deep-copied and frozen
// at the moment of the call: a sibling parallel step completing later
// never changes what an already-invoked step sees.
func (m *Manager) Snapshot(use []string) *View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &View{
		input:   make(map[string]any, len(m.exec.Input)),
		fields:  make(map[string]any, len(use)),
		outputs: make(map[string]map[string]any, len(m.exec.Outputs)),
	}
	for k, val := range m.exec.Input {
		v.input[k] = deepCopy(val)
	}
	for _, f := range use {
		if val, ok := m.exec.Fields[f]; ok {
			v.fields[f] = deepCopy(val)
		}
	}
	for step, out := range m.exec.Outputs {
		cp := make(map[string]any, len(out))
		for k, val := range out {
			cp[k] = deepCopy(val)
		}
		v.outputs[step] = cp
	}
	return v
}

// Commit applies a succeeded step's output to the execution state. Only
// fields in the step's declared set are written; each value is checked
// against the state schema. Commit must never run concurrently — the
// executor serializes commits per execution — so a held lock means the
// invariant is broken and a *ConcurrencyViolation is returned.
func (m *Manager) Commit(stepName string, set []string, output map[string]any) error {
	if !m.committing.CompareAndSwap(false, true) {
		return &ConcurrencyViolation{Execution: m.exec.ID.String(), Step: stepName}
	}
	defer m.committing.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole write before touching any field: a commit is
	// all-or-nothing.
	for _, f := range set {
		v, ok := output[f]
		if !ok {
			continue
		}
		if err := m.schema.Check(f, v); err != nil {
			return fmt.Errorf("state: commit %q: %w", stepName, err)
		}
	}

	committed := make(map[string]any, len(set))
	for _, f := range set {
		v, ok := output[f]
		if !ok {
			continue
		}
		m.exec.Fields[f] = deepCopy(v)
		m.exec.Writers[f] = stepName
		committed[f] = deepCopy(v)
	}
	m.exec.Outputs[stepName] = committed
	m.exec.Cursor = append(m.exec.Cursor, stepName)
	m.exec.Touch()
	return nil
}

// View is a read-only snapshot handed to a step at invocation time. It
// resolves the expression scopes: "input" (trigger payload), "state"
// (the step's use fields), and prior step names (their output fields).
type View struct {
	input   map[string]any
	fields  map[string]any
	outputs map[string]map[string]any
}

// Lookup implements expr.Resolver.
func (v *View) Lookup(scope, field string) (any, bool) {
	switch scope {
	case "input":
		val, ok := v.input[field]
		return val, ok
	case "state":
		val, ok := v.fields[field]
		return val, ok
	default:
		out, ok := v.outputs[scope]
		if !ok {
			return nil, false
		}
		val, ok := out[field]
		return val, ok
	}
}

// Field returns a use-set state field's value.
func (v *View) Field(name string) (any, bool) {
	val, ok := v.fields[name]
	return val, ok
}

// Fields returns the view's state fields (the step's use set values).
func (v *View) Fields() map[string]any { return v.fields }
