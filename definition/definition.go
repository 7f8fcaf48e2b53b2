// Package definition parses and validates declarative workflow
// definitions. A definition describes a directed graph of operation
// steps, the state schema they share, the triggers that start an
// execution, and the output mapping evaluated at completion.
//
// Load validates everything up front — step name uniqueness, reference
// resolution, write-write disjointness within parallel groups, cache
// TTLs, trigger kinds — and never returns a partial graph.
package definition

import (
	"fmt"
	"time"

	"github.com/weftlabs/weft/expr"
)

// FieldType is the declared type of a state schema field.
type FieldType string

// Supported state field types.
const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	TypeAny     FieldType = "any"
)

// knownFieldTypes is the closed set of valid schema types.
var knownFieldTypes = map[FieldType]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
	TypeAny:     true,
}

// Schema maps state field names to their declared types.
type Schema map[string]FieldType

// Check verifies that a value conforms to the declared type of a field.
// Nil values are accepted for every type.
func (s Schema) Check(field string, v any) error {
	ft, ok := s[field]
	if !ok {
		return fmt.Errorf("field %q is not declared in the state schema", field)
	}
	if v == nil || ft == TypeAny {
		return nil
	}

	var match bool
	switch ft {
	case TypeString:
		_, match = v.(string)
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64:
			match = true
		}
	case TypeBoolean:
		_, match = v.(bool)
	case TypeObject:
		_, match = v.(map[string]any)
	case TypeArray:
		switch v.(type) {
		case []any, []map[string]any, []string, []float64:
			match = true
		}
	}
	if !match {
		return fmt.Errorf("field %q: value of type %T does not match declared type %q", field, v, ft)
	}
	return nil
}

// TriggerKind identifies a supported trigger binding kind.
type TriggerKind string

// Supported trigger kinds.
const (
	TriggerHTTP     TriggerKind = "http"
	TriggerWebhook  TriggerKind = "webhook"
	TriggerSchedule TriggerKind = "schedule"
	TriggerQueue    TriggerKind = "queue"
	TriggerManual   TriggerKind = "manual"
)

var knownTriggerKinds = map[TriggerKind]bool{
	TriggerHTTP:     true,
	TriggerWebhook:  true,
	TriggerSchedule: true,
	TriggerQueue:    true,
	TriggerManual:   true,
}

// Binding declares how an external event starts an execution of the
// workflow. Exactly how payload fields map into the workflow input is
// the trigger dispatcher's job; the binding only declares the contract.
type Binding struct {
	Kind TriggerKind

	// Inputs are the payload fields this binding supplies. ${input.x}
	// references validate against the union of all bindings' Inputs.
	Inputs []string

	// Method and Path apply to http and webhook bindings.
	Method string
	Path   string

	// Secret names the shared secret used for webhook signature
	// verification (resolved from the environment by the server).
	Secret string

	// Schedule is a cron expression for schedule bindings.
	Schedule string

	// Static is the fixed input map used by schedule bindings, which
	// carry no payload of their own.
	Static map[string]any

	// Queue names the queue a queue binding consumes from.
	Queue string
}

// CachePolicy controls per-step output caching.
type CachePolicy struct {
	// TTL is how long a cached output stays valid. Zero disables caching
	// even when Enabled is true.
	TTL time.Duration

	// Enabled gates cache participation. Steps with side effects must
	// leave caching disabled; the engine does not infer this.
	Enabled bool
}

// RetryPolicy controls bounded retry with backoff for a step.
type RetryPolicy struct {
	// MaxRetries is the number of re-invocations after the initial
	// attempt. Zero means the step runs exactly once.
	MaxRetries int

	// Backoff selects the delay strategy: "constant", "linear",
	// "exponential", or "jitter" (exponential with full jitter, the
	// default).
	Backoff string

	// Initial is the base delay before the first retry.
	Initial time.Duration

	// Max caps the delay between retries.
	Max time.Duration

	// Declared marks a policy the definition spells out. Steps without
	// a retry block fall back to the engine's default retry settings.
	Declared bool
}

// Step is one unit of work in the graph, bound to an operation kind and
// a set of declared state reads (Use) and writes (Set).
type Step struct {
	Name    string
	Op      string
	Config  map[string]any
	Input   map[string]*expr.Expr
	Use     []string
	Set     []string
	Cache   CachePolicy
	Retry   RetryPolicy
	Timeout time.Duration

	index int
}

// Index returns the step's position in definition order, counting every
// step across all flow entries. Used for deterministic error tie-breaks.
func (s *Step) Index() int { return s.index }

// Sets reports whether the step declares a write to the given field.
func (s *Step) Sets(field string) bool {
	for _, f := range s.Set {
		if f == field {
			return true
		}
	}
	return false
}

// Uses reports whether the step declares a read of the given field.
func (s *Step) Uses(field string) bool {
	for _, f := range s.Use {
		if f == field {
			return true
		}
	}
	return false
}

// Entry is one element of the flow: either a single step or a named
// parallel group of steps.
type Entry struct {
	Step     *Step
	Group    string
	Parallel []*Step
}

// Steps returns the entry's steps: one for a single step, all members
// for a parallel group.
func (e Entry) Steps() []*Step {
	if e.Step != nil {
		return []*Step{e.Step}
	}
	return e.Parallel
}

// IsParallel reports whether the entry is a parallel group.
func (e Entry) IsParallel() bool { return e.Step == nil }

// Workflow is a validated, immutable workflow definition.
type Workflow struct {
	Name     string
	Version  string
	Triggers []Binding
	State    Schema
	Flow     []Entry
	Output   map[string]*expr.Expr

	steps map[string]*Step
	order []*Step
	deps  map[string][]string
}

// Step returns the named step, or nil if it does not exist.
func (w *Workflow) Step(name string) *Step { return w.steps[name] }

// Steps returns every step in definition order.
func (w *Workflow) Steps() []*Step { return w.order }

// Deps returns the names of the upstream steps the named step depends
// on: earlier writers of its Use fields plus steps referenced directly
// in its input expressions. Computed once at load time.
func (w *Workflow) Deps(name string) []string { return w.deps[name] }

// Binding returns the first trigger binding of the given kind.
func (w *Workflow) Binding(kind TriggerKind) (*Binding, bool) {
	for i := range w.Triggers {
		if w.Triggers[i].Kind == kind {
			return &w.Triggers[i], true
		}
	}
	return nil, false
}

// InputFields returns the union of payload fields declared by all
// trigger bindings, in first-seen order.
func (w *Workflow) InputFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, b := range w.Triggers {
		for _, f := range b.Inputs {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	return fields
}
