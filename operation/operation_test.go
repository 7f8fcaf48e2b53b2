package operation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/operation"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := operation.NewRegistry()
	r.Register(operation.Func{
		Name: "noop",
		Fn: func(_ context.Context, _ *operation.Request) (*operation.Result, error) {
			return &operation.Result{}, nil
		},
	})

	if _, ok := r.Get("noop"); !ok {
		t.Fatal("registered handler not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unregistered kind resolved")
	}
}

func TestRegistry_ReplaceSameKind(t *testing.T) {
	r := operation.NewRegistry()
	calls := 0
	r.Register(operation.Func{Name: "op", Fn: func(_ context.Context, _ *operation.Request) (*operation.Result, error) {
		calls += 10
		return nil, nil
	}})
	r.Register(operation.Func{Name: "op", Fn: func(_ context.Context, _ *operation.Request) (*operation.Result, error) {
		calls++
		return nil, nil
	}})

	h, _ := r.Get("op")
	if _, err := h.Execute(context.Background(), &operation.Request{}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (later registration wins)", calls)
	}
}

func TestValidateOutput(t *testing.T) {
	schema := definition.Schema{
		"score": definition.TypeNumber,
		"label": definition.TypeString,
	}

	tests := []struct {
		name    string
		set     []string
		output  map[string]any
		wantErr bool
	}{
		{"conforming", []string{"score"}, map[string]any{"score": 1.0}, false},
		{"undeclared field", []string{"score"}, map[string]any{"score": 1.0, "label": "x"}, true},
		{"missing declared field", []string{"score", "label"}, map[string]any{"score": 1.0}, true},
		{"wrong type", []string{"score"}, map[string]any{"score": "high"}, true},
		{"empty set empty output", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := operation.ValidateOutput("s1", tt.set, schema, tt.output)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var se *operation.SchemaError
				if !errors.As(err, &se) {
					t.Errorf("error type = %T, want *SchemaError", err)
				}
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain operation error", &operation.Error{Kind: "http.request", Step: "s", Err: errors.New("boom")}, true},
		{"permanent operation error", &operation.Error{Kind: "http.request", Step: "s", Permanent: true, Err: errors.New("404")}, false},
		{"timeout", &operation.TimeoutError{Step: "s", Timeout: time.Second}, true},
		{"schema mismatch", &operation.SchemaError{Step: "s", Field: "f", Reason: "wrong type"}, false},
		{"await input", operation.ErrAwaitInput, false},
		{"generic error", errors.New("transient"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := operation.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
