package definition

import (
	"fmt"

	cronlib "github.com/robfig/cron/v3"

	"github.com/weftlabs/weft/expr"
)

// scheduleParser accepts standard 5-field cron plus descriptors like
// "@every 30s", matching the schedule trigger's runner.
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression. Exported for the schedule
// trigger runner so load-time validation and run-time scheduling agree.
func ParseSchedule(spec string) (cronlib.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// validate checks the compiled workflow and computes per-step dependency
// sets. It enforces the whole load-time contract: unique step names,
// reference resolution with no forward references (except the output
// mapping), use/set fields declared in the schema, disjoint set fields
// within parallel groups, and parseable schedule expressions.
func validate(w *Workflow) error {
	for _, b := range w.Triggers {
		switch b.Kind {
		case TriggerSchedule:
			if _, err := ParseSchedule(b.Schedule); err != nil {
				return &ValidationError{
					Workflow: w.Name,
					Reason:   fmt.Sprintf("invalid schedule expression %q: %v", b.Schedule, err),
				}
			}
		case TriggerHTTP:
			if b.Path == "" {
				return &ValidationError{
					Workflow: w.Name,
					Reason:   "http trigger binding requires a path",
				}
			}
		}
	}

	inputFields := make(map[string]bool)
	for _, f := range w.InputFields() {
		inputFields[f] = true
	}

	// First pass: uniqueness and schema membership of use/set.
	for _, s := range w.order {
		if _, dup := w.steps[s.Name]; dup {
			return &ValidationError{
				Workflow: w.Name, Step: s.Name,
				Reason: "duplicate step name",
			}
		}
		w.steps[s.Name] = s

		for _, f := range s.Use {
			if _, ok := w.State[f]; !ok {
				return &ValidationError{
					Workflow: w.Name, Step: s.Name, Field: f,
					Reason: "use references a field not declared in the state schema",
				}
			}
		}
		for _, f := range s.Set {
			if _, ok := w.State[f]; !ok {
				return &ValidationError{
					Workflow: w.Name, Step: s.Name, Field: f,
					Reason: "set references a field not declared in the state schema",
				}
			}
		}
	}

	// Second pass: reference resolution and dependency computation,
	// walking entries in order so only earlier steps are visible.
	w.deps = make(map[string][]string, len(w.order))
	writers := make(map[string][]string) // state field → earlier writer steps
	defined := make(map[string]*Step)    // steps from earlier entries

	for _, entry := range w.Flow {
		members := entry.Steps()

		for _, s := range members {
			deps := make(map[string]bool)

			for _, f := range s.Use {
				for _, writer := range writers[f] {
					deps[writer] = true
				}
			}

			for field, e := range s.Input {
				for _, ref := range e.Refs() {
					if err := checkRef(w, s, field, ref, inputFields, defined); err != nil {
						return err
					}
					if ref.Scope != "input" && ref.Scope != "state" {
						deps[ref.Scope] = true
					}
					if ref.Scope == "state" && !s.Uses(ref.Field) {
						return &ValidationError{
							Workflow: w.Name, Step: s.Name, Field: field,
							Reason: fmt.Sprintf("expression reads state field %q not declared in use", ref.Field),
						}
					}
				}
			}

			w.deps[s.Name] = orderedDeps(w, deps)
		}

		// Parallel groups: disjoint set fields across members.
		if entry.IsParallel() {
			setBy := make(map[string]string)
			for _, s := range members {
				for _, f := range s.Set {
					if prev, clash := setBy[f]; clash {
						return &ConflictError{
							Workflow: w.Name,
							Group:    entry.Group,
							Field:    f,
							Steps:    [2]string{prev, s.Name},
						}
					}
					setBy[f] = s.Name
				}
			}
		}

		// Entry complete: its members become visible to later entries.
		for _, s := range members {
			defined[s.Name] = s
			for _, f := range s.Set {
				writers[f] = append(writers[f], s.Name)
			}
		}
	}

	// Output mapping: the one place forward references are allowed —
	// any step's set fields and any state field resolve.
	for field, e := range w.Output {
		for _, ref := range e.Refs() {
			if err := checkOutputRef(w, field, ref, inputFields); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkRef validates a single step-input reference against the scopes
// visible to the step: declared trigger inputs, the state schema, and
// earlier steps' set fields.
func checkRef(w *Workflow, s *Step, field string, ref expr.Ref, inputFields map[string]bool, defined map[string]*Step) error {
	switch ref.Scope {
	case "input":
		if !inputFields[ref.Field] {
			return &ValidationError{
				Workflow: w.Name, Step: s.Name, Field: field,
				Reason: fmt.Sprintf("%s does not resolve: no trigger declares input %q", ref, ref.Field),
			}
		}
	case "state":
		if _, ok := w.State[ref.Field]; !ok {
			return &ValidationError{
				Workflow: w.Name, Step: s.Name, Field: field,
				Reason: fmt.Sprintf("%s does not resolve: field not in state schema", ref),
			}
		}
	default:
		src, ok := defined[ref.Scope]
		if !ok {
			return &ValidationError{
				Workflow: w.Name, Step: s.Name, Field: field,
				Reason: fmt.Sprintf("%s does not resolve: no earlier step named %q", ref, ref.Scope),
			}
		}
		if !src.Sets(ref.Field) {
			return &ValidationError{
				Workflow: w.Name, Step: s.Name, Field: field,
				Reason: fmt.Sprintf("%s does not resolve: step %q does not set %q", ref, ref.Scope, ref.Field),
			}
		}
	}
	return nil
}

// checkOutputRef validates an output-mapping reference, where every
// step (not just earlier ones) is in scope.
func checkOutputRef(w *Workflow, field string, ref expr.Ref, inputFields map[string]bool) error {
	switch ref.Scope {
	case "input":
		if !inputFields[ref.Field] {
			return &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("output %s does not resolve: no trigger declares input %q", ref, ref.Field),
			}
		}
	case "state":
		if _, ok := w.State[ref.Field]; !ok {
			return &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("output %s does not resolve: field not in state schema", ref),
			}
		}
	default:
		src, ok := w.steps[ref.Scope]
		if !ok {
			return &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("output %s does not resolve: no step named %q", ref, ref.Scope),
			}
		}
		if !src.Sets(ref.Field) {
			return &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("output %s does not resolve: step %q does not set %q", ref, ref.Scope, ref.Field),
			}
		}
	}
	return nil
}

// orderedDeps returns the dependency set sorted by definition order for
// deterministic scheduling and error reporting.
func orderedDeps(w *Workflow, deps map[string]bool) []string {
	var out []string
	for _, s := range w.order {
		if deps[s.Name] {
			out = append(out, s.Name)
		}
	}
	return out
}
