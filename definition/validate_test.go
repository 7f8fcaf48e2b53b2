package definition_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/weftlabs/weft/definition"
)

func TestLoad_DuplicateStepNames(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - step:
      name: a
      op: transform.map
      set: [x]
  - step:
      name: a
      op: transform.map
`
	_, err := definition.Load([]byte(doc))
	var verr *definition.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	if verr.Step != "a" {
		t.Errorf("error step = %q, want %q", verr.Step, "a")
	}
	if !strings.Contains(verr.Reason, "duplicate") {
		t.Errorf("reason = %q, want duplicate step name", verr.Reason)
	}
}

func TestLoad_ParallelSetOverlapIsConflict(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - parallel:
      group: g
      steps:
        - name: a
          op: transform.map
          set: [x]
        - name: b
          op: transform.map
          set: [x]
`
	_, err := definition.Load([]byte(doc))
	var cerr *definition.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("Load error = %v, want *ConflictError", err)
	}
	if cerr.Field != "x" {
		t.Errorf("conflict field = %q, want %q", cerr.Field, "x")
	}
	if cerr.Steps != [2]string{"a", "b"} {
		t.Errorf("conflict steps = %v, want [a b]", cerr.Steps)
	}
}

func TestLoad_ForwardReferenceRejected(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - step:
      name: first
      op: transform.map
      input:
        v: ${later.x}
  - step:
      name: later
      op: transform.map
      set: [x]
`
	_, err := definition.Load([]byte(doc))
	var verr *definition.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	if verr.Step != "first" {
		t.Errorf("error step = %q, want %q", verr.Step, "first")
	}
}

func TestLoad_UndeclaredUseFieldRejected(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - step:
      name: a
      op: transform.map
      use: [ghost]
`
	_, err := definition.Load([]byte(doc))
	var verr *definition.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	if verr.Field != "ghost" {
		t.Errorf("error field = %q, want %q", verr.Field, "ghost")
	}
}

func TestLoad_StateReadOutsideUseRejected(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - step:
      name: a
      op: transform.map
      set: [x]
  - step:
      name: b
      op: transform.map
      input:
        v: ${state.x}
`
	_, err := definition.Load([]byte(doc))
	var verr *definition.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "use") {
		t.Errorf("reason = %q, want undeclared-use error", verr.Reason)
	}
}

func TestLoad_UnknownInputFieldRejected(t *testing.T) {
	doc := `
name: wf
triggers:
  - kind: manual
    inputs: [known]
flow:
  - step:
      name: a
      op: transform.map
      input:
        v: ${input.unknown}
`
	_, err := definition.Load([]byte(doc))
	if err == nil {
		t.Fatal("Load succeeded, want error for undeclared input field")
	}
}

func TestLoad_NegativeCacheTTLRejected(t *testing.T) {
	doc := `
name: wf
flow:
  - step:
      name: a
      op: transform.map
      cache:
        ttl: -5
`
	_, err := definition.Load([]byte(doc))
	if err == nil {
		t.Fatal("Load succeeded, want error for negative TTL")
	}
}

func TestLoad_UnknownTriggerKindRejected(t *testing.T) {
	doc := `
name: wf
triggers:
  - kind: carrier-pigeon
`
	_, err := definition.Load([]byte(doc))
	var verr *definition.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "carrier-pigeon") {
		t.Errorf("reason = %q, want it to name the unknown kind", verr.Reason)
	}
}

func TestLoad_InvalidScheduleExpressionRejected(t *testing.T) {
	doc := `
name: wf
triggers:
  - kind: schedule
    schedule: "not a cron line at all ! !"
`
	if _, err := definition.Load([]byte(doc)); err == nil {
		t.Fatal("Load succeeded, want error for invalid schedule")
	}
}

func TestLoad_OutputForwardReferenceAllowed(t *testing.T) {
	doc := `
name: wf
state:
  schema:
    x: number
flow:
  - step:
      name: a
      op: transform.map
      set: [x]
output:
  result: ${a.x}
`
	if _, err := definition.Load([]byte(doc)); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestSchema_Check(t *testing.T) {
	s := definition.Schema{
		"n": definition.TypeNumber,
		"s": definition.TypeString,
		"o": definition.TypeObject,
		"a": definition.TypeAny,
	}

	tests := []struct {
		name    string
		field   string
		value   any
		wantErr bool
	}{
		{"number ok", "n", 42.0, false},
		{"int is number", "n", 7, false},
		{"string mismatch", "n", "7", true},
		{"string ok", "s", "hi", false},
		{"object ok", "o", map[string]any{"k": 1}, false},
		{"object mismatch", "o", []any{1}, true},
		{"any accepts all", "a", []byte("x"), false},
		{"nil accepted", "o", nil, false},
		{"undeclared field", "ghost", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Check(tt.field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%s, %v) error = %v, wantErr %v", tt.field, tt.value, err, tt.wantErr)
			}
		})
	}
}
