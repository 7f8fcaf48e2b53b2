package builtin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/operation/builtin"
	"github.com/weftlabs/weft/store/memory"
)

func TestHTTPRequest_JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"total": 42}`)
	}))
	defer srv.Close()

	h := builtin.NewHTTPRequest(srv.Client())
	res, err := h.Execute(context.Background(), &operation.Request{
		Step:   "fetch",
		Config: map[string]any{"url": srv.URL, "assign": "data"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, ok := res.Output["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want map", res.Output["data"])
	}
	if data["total"] != 42.0 {
		t.Errorf("total = %v, want 42", data["total"])
	}
}

func TestHTTPRequest_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{"server error retryable", http.StatusBadGateway, false},
		{"client error permanent", http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			h := builtin.NewHTTPRequest(srv.Client())
			_, err := h.Execute(context.Background(), &operation.Request{
				Step:   "fetch",
				Config: map[string]any{"url": srv.URL, "assign": "data"},
			})
			if err == nil {
				t.Fatal("Execute succeeded, want error")
			}
			var oe *operation.Error
			if !errors.As(err, &oe) {
				t.Fatalf("error type = %T, want *operation.Error", err)
			}
			if oe.Permanent != tt.wantPermanent {
				t.Errorf("Permanent = %v, want %v", oe.Permanent, tt.wantPermanent)
			}
		})
	}
}

func TestHTTPRequest_SendsInputAsBody(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	h := builtin.NewHTTPRequest(srv.Client())
	_, err := h.Execute(context.Background(), &operation.Request{
		Step:   "post",
		Config: map[string]any{"url": srv.URL, "method": "POST", "assign": "out"},
		Input:  map[string]any{"order_id": "ord_1"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(gotBody) != `{"order_id":"ord_1"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestRenderTemplate(t *testing.T) {
	h := builtin.NewRenderTemplate()
	res, err := h.Execute(context.Background(), &operation.Request{
		Step: "greet",
		Config: map[string]any{
			"template": "hello {{.name}}",
			"assign":   "text",
		},
		Input: map[string]any{"name": "ada"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output["text"] != "hello ada" {
		t.Errorf("text = %q, want %q", res.Output["text"], "hello ada")
	}
}

func TestRenderTemplate_MissingKeyPermanent(t *testing.T) {
	h := builtin.NewRenderTemplate()
	_, err := h.Execute(context.Background(), &operation.Request{
		Step: "greet",
		Config: map[string]any{
			"template": "hello {{.name}}",
			"assign":   "text",
		},
	})
	if err == nil {
		t.Fatal("Execute succeeded, want error")
	}
	if operation.Retryable(err) {
		t.Error("template error classified retryable")
	}
}

func TestTransformMap(t *testing.T) {
	h := builtin.NewTransformMap()
	res, err := h.Execute(context.Background(), &operation.Request{
		Step:   "collect",
		Config: map[string]any{"assign": "summary"},
		Input:  map[string]any{"a": 1.0, "b": "two"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := res.Output["summary"].(map[string]any)
	if got["a"] != 1.0 || got["b"] != "two" {
		t.Errorf("summary = %v", got)
	}
}

func TestNotifyLog_NoOutput(t *testing.T) {
	h := builtin.NewNotifyLog(slog.New(slog.NewTextHandler(io.Discard, nil)))
	res, err := h.Execute(context.Background(), &operation.Request{
		Step:   "notify",
		Config: map[string]any{"level": "warn", "message": "low stock"},
		Input:  map[string]any{"sku": "x1"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 0 {
		t.Errorf("output = %v, want empty", res.Output)
	}
}

type fakePublisher struct {
	queue   string
	payload []byte
	err     error
}

func (f *fakePublisher) Enqueue(_ context.Context, queue string, payload []byte) error {
	f.queue, f.payload = queue, payload
	return f.err
}

func TestQueuePublish(t *testing.T) {
	pub := &fakePublisher{}
	h := builtin.NewQueuePublish(pub)
	_, err := h.Execute(context.Background(), &operation.Request{
		Step:   "emit",
		Config: map[string]any{"queue": "orders"},
		Input:  map[string]any{"id": "ord_1"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if pub.queue != "orders" {
		t.Errorf("queue = %q, want %q", pub.queue, "orders")
	}
	if string(pub.payload) != `{"id":"ord_1"}` {
		t.Errorf("payload = %s", pub.payload)
	}
}

func TestQueuePublish_PublishFailureRetryable(t *testing.T) {
	h := builtin.NewQueuePublish(&fakePublisher{err: errors.New("connection reset")})
	_, err := h.Execute(context.Background(), &operation.Request{
		Step:   "emit",
		Config: map[string]any{"queue": "orders"},
	})
	if err == nil {
		t.Fatal("Execute succeeded, want error")
	}
	if !operation.Retryable(err) {
		t.Error("publish failure classified permanent")
	}
}

func TestApprovalGate_AwaitsThenConsumes(t *testing.T) {
	bus := event.NewBus(memory.New())
	h := builtin.NewApprovalGate(bus)
	ctx := context.Background()

	req := &operation.Request{
		Execution: "exec_1",
		Step:      "review",
		Config:    map[string]any{"assign": "decision"},
	}

	// No approval yet: the gate requests suspension.
	_, err := h.Execute(ctx, req)
	if !errors.Is(err, operation.ErrAwaitInput) {
		t.Fatalf("err = %v, want ErrAwaitInput", err)
	}

	if _, err := bus.Publish(ctx, event.ApprovalName("exec_1", "review"), []byte(`{"approved":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	res, err := h.Execute(ctx, req)
	if err != nil {
		t.Fatalf("Execute after approval: %v", err)
	}
	decision := res.Output["decision"].(map[string]any)
	if decision["approved"] != true {
		t.Errorf("decision = %v", decision)
	}

	// The approval is consumed; a fresh invocation suspends again.
	if _, err := h.Execute(ctx, req); !errors.Is(err, operation.ErrAwaitInput) {
		t.Errorf("err = %v, want ErrAwaitInput after consumption", err)
	}
}

type fakeSource map[string]builtin.Component

func (f fakeSource) Component(name string) (builtin.Component, bool) {
	c, ok := f[name]
	return c, ok
}

func TestComponentExec(t *testing.T) {
	src := fakeSource{
		"pricing": builtin.ComponentFunc(func(_ context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"price": input["qty"].(float64) * 2}, nil
		}),
	}
	h := builtin.NewComponentExec(src)
	res, err := h.Execute(context.Background(), &operation.Request{
		Step:   "price",
		Config: map[string]any{"component": "pricing", "assign": "quote"},
		Input:  map[string]any{"qty": 3.0},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	quote := res.Output["quote"].(map[string]any)
	if quote["price"] != 6.0 {
		t.Errorf("price = %v, want 6", quote["price"])
	}
}

func TestComponentExec_UnknownComponentPermanent(t *testing.T) {
	h := builtin.NewComponentExec(fakeSource{})
	_, err := h.Execute(context.Background(), &operation.Request{
		Step:   "price",
		Config: map[string]any{"component": "ghost", "assign": "quote"},
	})
	if err == nil {
		t.Fatal("Execute succeeded, want error")
	}
	if operation.Retryable(err) {
		t.Error("unknown component classified retryable")
	}
}
