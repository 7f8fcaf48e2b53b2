package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/executor"
	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/state"
	"github.com/weftlabs/weft/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const triggeredYAML = `
name: ping
version: "1"
triggers:
  - kind: manual
    inputs: [target]
  - kind: schedule
    schedule: "@every 1s"
    static:
      target: heartbeat
  - kind: queue
    queue: pings
    inputs: [target]
state:
  schema:
    result: string
flow:
  - step:
      name: ping
      op: test.ping
      input:
        target: ${input.target}
      set: [result]
output:
  result: ${state.result}
`

func newDispatcher(t *testing.T) (*Dispatcher, *atomic.Int32) {
	t.Helper()

	wf, err := definition.Load([]byte(triggeredYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	workflows := definition.NewRegistry()
	workflows.Register(wf)

	var calls atomic.Int32
	ops := operation.NewRegistry()
	ops.Register(operation.Func{
		Name: "test.ping",
		Fn: func(_ context.Context, req *operation.Request) (*operation.Result, error) {
			calls.Add(1)
			return &operation.Result{
				Output: map[string]any{"result": "pinged " + req.Input["target"].(string)},
			}, nil
		},
	})

	logger := discardLogger()
	st := memory.New()
	exec := executor.New(workflows, ops, st, st, ext.NewRegistry(logger), logger)
	return NewDispatcher(workflows, exec, logger), &calls
}

// ──────────────────────────────────────────────────
// Dispatcher
// ──────────────────────────────────────────────────

func TestDispatch_Manual(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t)

	resp, err := d.Dispatch(context.Background(), definition.TriggerManual, "ping", map[string]any{"target": "edge-1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != state.StatusCompleted {
		t.Fatalf("Status = %q, want completed (failure: %+v)", resp.Status, resp.Failure)
	}
	if resp.Output["result"] != "pinged edge-1" {
		t.Errorf("Output = %v, want pinged edge-1", resp.Output)
	}
	if resp.ExecutionID.IsNil() {
		t.Error("ExecutionID not set")
	}
}

func TestDispatch_StaticBindingInput(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t)

	// Schedule firings carry no payload; static binding input fills the
	// required field.
	resp, err := d.Dispatch(context.Background(), definition.TriggerSchedule, "ping", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Output["result"] != "pinged heartbeat" {
		t.Errorf("Output = %v, want pinged heartbeat", resp.Output)
	}
}

func TestDispatch_PayloadOverridesStatic(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t)

	resp, err := d.Dispatch(context.Background(), definition.TriggerSchedule, "ping", map[string]any{"target": "explicit"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Output["result"] != "pinged explicit" {
		t.Errorf("Output = %v, want pinged explicit", resp.Output)
	}
}

func TestDispatch_UnboundKind(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), definition.TriggerWebhook, "ping", nil)
	if !errors.Is(err, weft.ErrTriggerNotBound) {
		t.Errorf("error = %v, want ErrTriggerNotBound", err)
	}
}

func TestDispatch_UnknownWorkflow(t *testing.T) {
	t.Parallel()
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), definition.TriggerManual, "ghost", nil)
	if !errors.Is(err, weft.ErrWorkflowNotFound) {
		t.Errorf("error = %v, want ErrWorkflowNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Webhook signatures
// ──────────────────────────────────────────────────

func TestVerifySignature(t *testing.T) {
	t.Parallel()
	body := []byte(`{"target":"edge-1"}`)
	secret := "s3cret"

	tests := []struct {
		name      string
		signature string
		wantErr   bool
	}{
		{"valid", Sign(secret, body), false},
		{"valid with prefix", "sha256=" + Sign(secret, body), false},
		{"wrong secret", Sign("other", body), true},
		{"tampered body", Sign(secret, []byte(`{"target":"evil"}`)), true},
		{"empty", "", true},
		{"garbage", "deadbeef", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(secret, body, tt.signature)
			if tt.wantErr && !errors.Is(err, ErrSignatureMismatch) {
				t.Errorf("error = %v, want ErrSignatureMismatch", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Schedule runner
// ──────────────────────────────────────────────────

type fireRecord struct {
	mu    sync.Mutex
	fired []string
}

func (f *fireRecord) dispatch(_ context.Context, kind definition.TriggerKind, workflow string, _ map[string]any) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != definition.TriggerSchedule {
		return nil, errors.New("unexpected trigger kind")
	}
	f.fired = append(f.fired, workflow)
	return &Response{ExecutionID: id.NewExecutionID(), Workflow: workflow, Status: state.StatusCompleted}, nil
}

func (f *fireRecord) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

func TestScheduleRunner_FiresDueWorkflows(t *testing.T) {
	t.Parallel()

	wf, err := definition.Load([]byte(triggeredYAML))
	if err != nil {
		t.Fatal(err)
	}
	workflows := definition.NewRegistry()
	workflows.Register(wf)

	rec := &fireRecord{}
	r := NewRunner(workflows, rec.dispatch, nil, discardLogger(),
		WithTickInterval(10*time.Millisecond),
	)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(context.Background())

	// "@every 1s" arms on first sighting and fires once the interval
	// elapses.
	deadline := time.Now().Add(3 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if rec.count() == 0 {
		t.Fatal("schedule never fired")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.fired[0] != "ping" {
		t.Errorf("fired workflow = %q, want ping", rec.fired[0])
	}
}

// ──────────────────────────────────────────────────
// Queue consumer
// ──────────────────────────────────────────────────

type stubSource struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *stubSource) Dequeue(ctx context.Context, _ string, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	if len(s.payloads) > 0 {
		p := s.payloads[0]
		s.payloads = s.payloads[1:]
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func TestQueueConsumer_DispatchesMessages(t *testing.T) {
	t.Parallel()

	wf, err := definition.Load([]byte(triggeredYAML))
	if err != nil {
		t.Fatal(err)
	}
	workflows := definition.NewRegistry()
	workflows.Register(wf)

	rec := &queueRecord{}
	src := &stubSource{payloads: [][]byte{
		[]byte(`{"target":"q-1"}`),
		[]byte(`{"target":"q-2"}`),
		[]byte(`not json`),
	}}

	c := NewConsumer(workflows, rec.dispatch, src, discardLogger(),
		WithPollTimeout(10*time.Millisecond),
		WithConcurrency(2),
	)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := rec.count(); got != 2 {
		t.Fatalf("dispatched = %d, want 2 (malformed payload skipped)", got)
	}
	targets := rec.targets()
	if targets["q-1"] != 1 || targets["q-2"] != 1 {
		t.Errorf("targets = %v, want q-1 and q-2 once each", targets)
	}
}

type queueRecord struct {
	mu     sync.Mutex
	inputs []map[string]any
}

func (q *queueRecord) dispatch(_ context.Context, kind definition.TriggerKind, workflow string, input map[string]any) (*Response, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if kind != definition.TriggerQueue || workflow != "ping" {
		return nil, errors.New("unexpected dispatch")
	}
	q.inputs = append(q.inputs, input)
	return &Response{ExecutionID: id.NewExecutionID(), Workflow: workflow, Status: state.StatusCompleted}, nil
}

func (q *queueRecord) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inputs)
}

func (q *queueRecord) targets() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int)
	for _, in := range q.inputs {
		if t, ok := in["target"].(string); ok {
			out[t]++
		}
	}
	return out
}
