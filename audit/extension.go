package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// Compile-time interface checks.
var (
	_ ext.Extension          = (*Extension)(nil)
	_ ext.ExecutionStarted   = (*Extension)(nil)
	_ ext.ExecutionSuspended = (*Extension)(nil)
	_ ext.ExecutionResumed   = (*Extension)(nil)
	_ ext.ExecutionCompleted = (*Extension)(nil)
	_ ext.ExecutionFailed    = (*Extension)(nil)
	_ ext.StepCompleted      = (*Extension)(nil)
	_ ext.StepFailed         = (*Extension)(nil)
	_ ext.ScheduleFired      = (*Extension)(nil)
)

// Record is one audit trail entry.
type Record struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Recorder is the interface audit backends must implement. It is
// defined locally so this package carries no backend dependency;
// callers inject their concrete trail at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit record.
	Record(ctx context.Context, rec *Record) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, rec *Record) error

func (f RecorderFunc) Record(ctx context.Context, rec *Record) error {
	return f(ctx, rec)
}

// SlogRecorder writes audit records as structured log entries on the
// given logger. Failure outcomes log at Warn, everything else at Info.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, rec *Record) error {
		attrs := []any{
			"action", rec.Action,
			"resource", rec.Resource,
			"resource_id", rec.ResourceID,
			"category", rec.Category,
			"outcome", rec.Outcome,
			"severity", rec.Severity,
		}
		if rec.Reason != "" {
			attrs = append(attrs, "reason", rec.Reason)
		}
		for k, v := range rec.Metadata {
			attrs = append(attrs, k, v)
		}
		if rec.Outcome == OutcomeFailure {
			logger.WarnContext(ctx, "audit", attrs...)
		} else {
			logger.InfoContext(ctx, "audit", attrs...)
		}
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges engine lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured record through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithActions restricts the extension to emit only the listed actions.
// By default all actions are enabled. Unknown actions are silently
// ignored.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets the logger used to report recorder failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// New creates an Extension that emits audit records through the
// provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Execution lifecycle hooks ───────────────────────

// OnExecutionStarted implements ext.ExecutionStarted.
func (e *Extension) OnExecutionStarted(ctx context.Context, exec *state.Execution) error {
	return e.record(ctx, ActionExecutionStarted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID.String(), CategoryExecution, nil,
		"workflow", exec.Workflow,
		"version", exec.Version,
	)
}

// OnExecutionSuspended implements ext.ExecutionSuspended.
func (e *Extension) OnExecutionSuspended(ctx context.Context, exec *state.Execution, step string) error {
	return e.record(ctx, ActionExecutionSuspended, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID.String(), CategoryExecution, nil,
		"workflow", exec.Workflow,
		"step", step,
	)
}

// OnExecutionResumed implements ext.ExecutionResumed.
func (e *Extension) OnExecutionResumed(ctx context.Context, exec *state.Execution) error {
	return e.record(ctx, ActionExecutionResumed, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID.String(), CategoryExecution, nil,
		"workflow", exec.Workflow,
	)
}

// OnExecutionCompleted implements ext.ExecutionCompleted.
func (e *Extension) OnExecutionCompleted(ctx context.Context, exec *state.Execution, elapsed time.Duration) error {
	return e.record(ctx, ActionExecutionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID.String(), CategoryExecution, nil,
		"workflow", exec.Workflow,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnExecutionFailed implements ext.ExecutionFailed.
func (e *Extension) OnExecutionFailed(ctx context.Context, exec *state.Execution, execErr error) error {
	return e.record(ctx, ActionExecutionFailed, SeverityCritical, OutcomeFailure,
		ResourceExecution, exec.ID.String(), CategoryExecution, execErr,
		"workflow", exec.Workflow,
	)
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements ext.StepCompleted.
func (e *Extension) OnStepCompleted(ctx context.Context, exec *state.Execution, ev *ext.StepEvent) error {
	return e.record(ctx, ActionStepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID.String(), CategoryExecution, nil,
		"workflow", exec.Workflow,
		"step", ev.Step,
		"attempt", ev.Attempt,
		"cache_hit", ev.CacheHit,
		"elapsed_ms", ev.Duration.Milliseconds(),
	)
}

// OnStepFailed implements ext.StepFailed.
func (e *Extension) OnStepFailed(ctx context.Context, exec *state.Execution, ev *ext.StepEvent) error {
	return e.record(ctx, ActionStepFailed, SeverityWarning, OutcomeFailure,
		ResourceExecution, exec.ID.String(), CategoryExecution, ev.Err,
		"workflow", exec.Workflow,
		"step", ev.Step,
		"attempt", ev.Attempt,
	)
}

// ── Schedule hooks ──────────────────────────────────

// OnScheduleFired implements ext.ScheduleFired.
func (e *Extension) OnScheduleFired(ctx context.Context, workflow string, execID id.ExecutionID) error {
	return e.record(ctx, ActionScheduleFired, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, workflow, CategorySchedule, nil,
		"execution_id", execID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit record if the action is enabled.
// kvPairs is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	rec := &Record{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, rec); recErr != nil {
		e.logger.Warn("audit: failed to record event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
