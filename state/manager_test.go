package state_test

import (
	"errors"
	"testing"

	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/state"
)

func newTestManager() (*state.Manager, *state.Execution) {
	schema := definition.Schema{
		"data":   definition.TypeObject,
		"score":  definition.TypeNumber,
		"label":  definition.TypeString,
		"hidden": definition.TypeString,
	}
	exec := state.NewExecution("wf", "1", map[string]any{"order_id": "ord_1"})
	return state.NewManager(exec, schema), exec
}

func TestSnapshot_RestrictedToUseSet(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Commit("a", []string{"score", "hidden"}, map[string]any{
		"score":  5.0,
		"hidden": "secret",
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v := m.Snapshot([]string{"score"})
	if _, ok := v.Field("score"); !ok {
		t.Error("score missing from snapshot")
	}
	if _, ok := v.Field("hidden"); ok {
		t.Error("hidden visible despite not being in the use set")
	}
}

func TestSnapshot_FrozenAtInvocation(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Commit("a", []string{"data"}, map[string]any{
		"data": map[string]any{"total": 10.0},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v := m.Snapshot([]string{"data"})

	// A later sibling commit must not leak into the earlier snapshot.
	if err := m.Commit("b", []string{"data"}, map[string]any{
		"data": map[string]any{"total": 99.0},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _ := v.Field("data")
	total := got.(map[string]any)["total"]
	if total != 10.0 {
		t.Errorf("snapshot data.total = %v, want 10 (frozen)", total)
	}
}

func TestSnapshot_DeepCopied(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Commit("a", []string{"data"}, map[string]any{
		"data": map[string]any{"total": 1.0},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v := m.Snapshot([]string{"data"})
	got, _ := v.Field("data")
	got.(map[string]any)["total"] = -1.0

	v2 := m.Snapshot([]string{"data"})
	fresh, _ := v2.Field("data")
	if fresh.(map[string]any)["total"] != 1.0 {
		t.Error("mutating a snapshot leaked into live state")
	}
}

func TestCommit_SchemaViolationRejected(t *testing.T) {
	m, _ := newTestManager()
	err := m.Commit("a", []string{"score"}, map[string]any{"score": "not a number"})
	if err == nil {
		t.Fatal("Commit succeeded, want schema error")
	}
}

func TestCommit_AllOrNothing(t *testing.T) {
	m, exec := newTestManager()
	err := m.Commit("a", []string{"label", "score"}, map[string]any{
		"label": "ok",
		"score": "bad type",
	})
	if err == nil {
		t.Fatal("Commit succeeded, want schema error")
	}
	if _, written := exec.Fields["label"]; written {
		t.Error("partial commit: label written despite score failing validation")
	}
	if exec.Succeeded("a") {
		t.Error("failed commit advanced the cursor")
	}
}

func TestCommit_RecordsWriterAndCursor(t *testing.T) {
	m, exec := newTestManager()
	if err := m.Commit("a", []string{"score"}, map[string]any{"score": 7.0}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if exec.Writers["score"] != "a" {
		t.Errorf("writer = %q, want %q", exec.Writers["score"], "a")
	}
	if !exec.Succeeded("a") {
		t.Error("cursor does not contain committed step")
	}
	if exec.Outputs["a"]["score"] != 7.0 {
		t.Errorf("step output = %v, want 7", exec.Outputs["a"]["score"])
	}
}

func TestView_LookupScopes(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Commit("fetch", []string{"data"}, map[string]any{
		"data": map[string]any{"total": 3.0},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v := m.Snapshot([]string{"data"})

	if got, ok := v.Lookup("input", "order_id"); !ok || got != "ord_1" {
		t.Errorf("Lookup(input, order_id) = %v, %v", got, ok)
	}
	if _, ok := v.Lookup("state", "data"); !ok {
		t.Error("Lookup(state, data) missed")
	}
	if _, ok := v.Lookup("fetch", "data"); !ok {
		t.Error("Lookup(fetch, data) missed")
	}
	if _, ok := v.Lookup("ghost", "data"); ok {
		t.Error("Lookup(ghost, data) resolved unexpectedly")
	}
}

func TestConcurrencyViolation_ErrorsAs(t *testing.T) {
	err := error(&state.ConcurrencyViolation{Execution: "exec_x", Step: "b"})
	var cv *state.ConcurrencyViolation
	if !errors.As(err, &cv) {
		t.Fatal("ConcurrencyViolation not matchable with errors.As")
	}
	if cv.Step != "b" {
		t.Errorf("step = %q, want %q", cv.Step, "b")
	}
}
