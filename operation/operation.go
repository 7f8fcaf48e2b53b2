package operation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAwaitInput is returned by a handler that cannot complete until
// external input arrives. The executor suspends the execution at the
// current step instead of treating this as a failure.
var ErrAwaitInput = errors.New("weft: operation awaiting external input")

// Request carries everything a handler needs for one invocation.
// Input holds the step's resolved input expressions; Config holds the
// step's static configuration from the definition.
type Request struct {
	Execution string
	Workflow  string
	Version   string
	Step      string
	Attempt   int
	Config    map[string]any
	Input     map[string]any
}

// Result is a handler's output. Keys must match the step's declared
// writes; the executor rejects anything else before commit.
type Result struct {
	Output map[string]any
}

// Handler executes one operation kind.
type Handler interface {
	// Kind returns the operation identifier steps refer to,
	// e.g. "http.request".
	Kind() string

	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts an ordinary function to a Handler.
type Func struct {
	Name string
	Fn   func(ctx context.Context, req *Request) (*Result, error)
}

func (f Func) Kind() string { return f.Name }

func (f Func) Execute(ctx context.Context, req *Request) (*Result, error) {
	return f.Fn(ctx, req)
}

// Error is a failure reported by an operation. Permanent failures skip
// the step's retry policy.
type Error struct {
	Kind      string
	Step      string
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("weft: operation %s failed at step %q: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeoutError reports that a step exceeded its execution timeout.
// Timeouts are retryable under the step's retry policy.
type TimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("weft: step %q timed out after %s", e.Step, e.Timeout)
}

// SchemaError reports an operation output that does not match the
// step's declared writes. Re-running the same code against the same
// contract cannot succeed, so schema mismatches are never retried.
type SchemaError struct {
	Step   string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("weft: step %q output field %q: %s", e.Step, e.Field, e.Reason)
	}
	return fmt.Sprintf("weft: step %q output: %s", e.Step, e.Reason)
}

// Retryable reports whether a failure may be retried under a step's
// retry policy.
func Retryable(err error) bool {
	var se *SchemaError
	if errors.As(err, &se) {
		return false
	}
	var oe *Error
	if errors.As(err, &oe) && oe.Permanent {
		return false
	}
	if errors.Is(err, ErrAwaitInput) {
		return false
	}
	return true
}
