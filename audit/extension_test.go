package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/weftlabs/weft/audit"
	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

type memRecorder struct {
	mu      sync.Mutex
	records []*audit.Record
	err     error
}

func (m *memRecorder) Record(_ context.Context, rec *audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memRecorder) last(t *testing.T) *audit.Record {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		t.Fatal("no records")
	}
	return m.records[len(m.records)-1]
}

func newExec() *state.Execution {
	return state.NewExecution("scoring", "1", map[string]any{"order_id": "o-1"})
}

func TestExtension_ExecutionHooks(t *testing.T) {
	rec := &memRecorder{}
	e := audit.New(rec)
	ctx := context.Background()
	exec := newExec()

	if err := e.OnExecutionStarted(ctx, exec); err != nil {
		t.Fatalf("OnExecutionStarted: %v", err)
	}
	got := rec.last(t)
	if got.Action != audit.ActionExecutionStarted {
		t.Errorf("Action = %q, want %q", got.Action, audit.ActionExecutionStarted)
	}
	if got.ResourceID != exec.ID.String() {
		t.Errorf("ResourceID = %q, want %q", got.ResourceID, exec.ID)
	}
	if got.Metadata["workflow"] != "scoring" {
		t.Errorf("Metadata = %v, want workflow=scoring", got.Metadata)
	}

	if err := e.OnExecutionCompleted(ctx, exec, 120*time.Millisecond); err != nil {
		t.Fatalf("OnExecutionCompleted: %v", err)
	}
	got = rec.last(t)
	if got.Metadata["elapsed_ms"] != int64(120) {
		t.Errorf("elapsed_ms = %v, want 120", got.Metadata["elapsed_ms"])
	}

	if err := e.OnExecutionFailed(ctx, exec, errors.New("score unavailable")); err != nil {
		t.Fatalf("OnExecutionFailed: %v", err)
	}
	got = rec.last(t)
	if got.Outcome != audit.OutcomeFailure || got.Severity != audit.SeverityCritical {
		t.Errorf("outcome/severity = %q/%q, want failure/critical", got.Outcome, got.Severity)
	}
	if got.Reason != "score unavailable" {
		t.Errorf("Reason = %q", got.Reason)
	}
}

func TestExtension_StepHooks(t *testing.T) {
	rec := &memRecorder{}
	e := audit.New(rec)
	exec := newExec()

	ev := &ext.StepEvent{Step: "score", Attempt: 2, CacheHit: true, Duration: 50 * time.Millisecond}
	if err := e.OnStepCompleted(context.Background(), exec, ev); err != nil {
		t.Fatalf("OnStepCompleted: %v", err)
	}
	got := rec.last(t)
	if got.Action != audit.ActionStepCompleted {
		t.Errorf("Action = %q", got.Action)
	}
	if got.Metadata["step"] != "score" || got.Metadata["attempt"] != 2 || got.Metadata["cache_hit"] != true {
		t.Errorf("Metadata = %v", got.Metadata)
	}

	fail := &ext.StepEvent{Step: "score", Attempt: 3, Err: errors.New("timeout")}
	if err := e.OnStepFailed(context.Background(), exec, fail); err != nil {
		t.Fatalf("OnStepFailed: %v", err)
	}
	got = rec.last(t)
	if got.Severity != audit.SeverityWarning || got.Metadata["error"] != "timeout" {
		t.Errorf("record = %+v", got)
	}
}

func TestExtension_ScheduleFired(t *testing.T) {
	rec := &memRecorder{}
	e := audit.New(rec)
	execID := id.NewExecutionID()

	if err := e.OnScheduleFired(context.Background(), "nightly", execID); err != nil {
		t.Fatalf("OnScheduleFired: %v", err)
	}
	got := rec.last(t)
	if got.Resource != audit.ResourceSchedule || got.ResourceID != "nightly" {
		t.Errorf("record = %+v", got)
	}
	if got.Metadata["execution_id"] != execID.String() {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestExtension_WithActionsFilters(t *testing.T) {
	rec := &memRecorder{}
	e := audit.New(rec, audit.WithActions(audit.ActionExecutionFailed))
	exec := newExec()

	if err := e.OnExecutionStarted(context.Background(), exec); err != nil {
		t.Fatalf("OnExecutionStarted: %v", err)
	}
	if len(rec.records) != 0 {
		t.Fatalf("records = %d, want 0 for filtered action", len(rec.records))
	}

	if err := e.OnExecutionFailed(context.Background(), exec, errors.New("boom")); err != nil {
		t.Fatalf("OnExecutionFailed: %v", err)
	}
	if len(rec.records) != 1 {
		t.Fatalf("records = %d, want 1", len(rec.records))
	}
}

func TestExtension_RecorderErrorDoesNotPropagate(t *testing.T) {
	rec := &memRecorder{err: errors.New("sink down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := audit.New(rec, audit.WithLogger(logger))

	if err := e.OnExecutionStarted(context.Background(), newExec()); err != nil {
		t.Errorf("hook error = %v, want nil despite recorder failure", err)
	}
}

func TestSlogRecorder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := audit.SlogRecorder(logger)
	err := r.Record(context.Background(), &audit.Record{
		Action:   audit.ActionExecutionCompleted,
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]any{"workflow": "scoring"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}
