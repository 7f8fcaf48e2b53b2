package definition

import "fmt"

// ValidationError reports a load-time definition error. It always names
// the offending workflow and, where applicable, the step and field, so
// the failure can be located without re-reading the document.
type ValidationError struct {
	Workflow string
	Step     string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("definition: workflow %q", e.Workflow)
	if e.Step != "" {
		msg += fmt.Sprintf(": step %q", e.Step)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	return msg + ": " + e.Reason
}

// ConflictError reports two steps in the same parallel group declaring a
// write to the same state field. Write-write conflicts are a load-time
// validation error, never a run-time race.
type ConflictError struct {
	Workflow string
	Group    string
	Field    string
	Steps    [2]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"definition: workflow %q: parallel group %q: steps %q and %q both set field %q",
		e.Workflow, e.Group, e.Steps[0], e.Steps[1], e.Field,
	)
}
