package weft

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("weft: no store configured")
	ErrStoreClosed = errors.New("weft: store closed")

	// Not found errors.
	ErrWorkflowNotFound   = errors.New("weft: workflow not found")
	ErrExecutionNotFound  = errors.New("weft: execution not found")
	ErrCheckpointNotFound = errors.New("weft: checkpoint not found")
	ErrEventNotFound      = errors.New("weft: event not found")
	ErrOperationNotFound  = errors.New("weft: no handler registered for operation kind")
	ErrTriggerNotBound    = errors.New("weft: workflow has no binding for trigger kind")

	// Conflict errors.
	ErrExecutionExists   = errors.New("weft: execution already exists")
	ErrWorkflowExists    = errors.New("weft: workflow already registered")
	ErrDuplicateSchedule = errors.New("weft: duplicate schedule entry")

	// State errors.
	ErrInvalidState = errors.New("weft: invalid execution state transition")
	ErrNotSuspended = errors.New("weft: execution is not suspended")
)
