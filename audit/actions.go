package audit

// Audit record actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the record.
const (
	ActionExecutionStarted   = "execution.started"
	ActionExecutionSuspended = "execution.suspended"
	ActionExecutionResumed   = "execution.resumed"
	ActionExecutionCompleted = "execution.completed"
	ActionExecutionFailed    = "execution.failed"
	ActionStepCompleted      = "execution.step_completed"
	ActionStepFailed         = "execution.step_failed"
	ActionScheduleFired      = "schedule.fired"
)

// Audit record categories group related actions.
const (
	CategoryExecution = "weft.execution"
	CategorySchedule  = "weft.schedule"
)

// Resource types used as the Resource field in audit records.
const (
	ResourceExecution = "execution"
	ResourceSchedule  = "schedule_entry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionExecutionStarted,
		ActionExecutionSuspended,
		ActionExecutionResumed,
		ActionExecutionCompleted,
		ActionExecutionFailed,
		ActionStepCompleted,
		ActionStepFailed,
		ActionScheduleFired,
	}
}
