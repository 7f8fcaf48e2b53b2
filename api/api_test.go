package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/weftlabs/weft/api"
	"github.com/weftlabs/weft/engine"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/store/memory"
	"github.com/weftlabs/weft/trigger"
)

const reviewYAML = `
name: review
version: "1"
triggers:
  - kind: manual
    inputs: [doc_id]
  - kind: webhook
    path: /hooks/review
    secret: hooksecret
    inputs: [doc_id]
state:
  schema:
    summary: string
    decision: object
flow:
  - step:
      name: summarize
      op: test.summarize
      input:
        doc_id: ${input.doc_id}
      set: [summary]
  - step:
      name: gate
      op: approval.gate
      config:
        assign: decision
      use: [summary]
      set: [decision]
output:
  summary: ${state.summary}
  decision: ${state.decision}
`

const simpleYAML = `
name: simple
version: "1"
triggers:
  - kind: manual
    inputs: [doc_id]
state:
  schema:
    summary: string
flow:
  - step:
      name: summarize
      op: test.summarize
      input:
        doc_id: ${input.doc_id}
      set: [summary]
output:
  summary: ${state.summary}
`

func newHandler(t *testing.T) (http.Handler, *engine.Engine) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Build(memory.New(), engine.WithLogger(logger))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	eng.RegisterOperation(operation.Func{
		Name: "test.summarize",
		Fn: func(_ context.Context, req *operation.Request) (*operation.Result, error) {
			docID, _ := req.Input["doc_id"].(string)
			return &operation.Result{Output: map[string]any{"summary": "summary of " + docID}}, nil
		},
	})
	for _, src := range []string{reviewYAML, simpleYAML} {
		if _, err := eng.RegisterWorkflow([]byte(src)); err != nil {
			t.Fatalf("RegisterWorkflow: %v", err)
		}
	}
	return api.NewServer(eng).Handler(), eng
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

const echoContentType = "Content-Type"

func TestHealthz(t *testing.T) {
	h, _ := newHandler(t)
	rec, out := doJSON(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if out["status"] != "ok" {
		t.Errorf("body = %v", out)
	}
}

func TestListWorkflows(t *testing.T) {
	h, _ := newHandler(t)
	rec, out := doJSON(t, h, http.MethodGet, "/v1/workflows", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	names, _ := out["workflows"].([]any)
	if len(names) != 2 {
		t.Errorf("workflows = %v, want 2 entries", out["workflows"])
	}
}

func TestGetWorkflow(t *testing.T) {
	h, _ := newHandler(t)
	rec, out := doJSON(t, h, http.MethodGet, "/v1/workflows/review", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if out["name"] != "review" || out["version"] != "1" {
		t.Errorf("body = %v", out)
	}
	steps, _ := out["steps"].([]any)
	if len(steps) != 2 {
		t.Fatalf("steps = %v, want 2", out["steps"])
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/v1/workflows/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown workflow status = %d, want 404", rec.Code)
	}
}

func TestTriggerWorkflow(t *testing.T) {
	h, _ := newHandler(t)

	rec, out := doJSON(t, h, http.MethodPost, "/v1/workflows/simple/trigger", `{"doc_id":"d-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}
	if out["status"] != "completed" {
		t.Errorf("status = %v, want completed", out["status"])
	}
	output, _ := out["output"].(map[string]any)
	if output["summary"] != "summary of d-1" {
		t.Errorf("output = %v", output)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/v1/workflows/simple/trigger", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing input status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/v1/workflows/ghost/trigger", `{"doc_id":"d"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown workflow status = %d, want 404", rec.Code)
	}
}

func TestWebhook_SignatureRequired(t *testing.T) {
	h, _ := newHandler(t)
	body := `{"doc_id":"d-9"}`

	// No signature.
	rec, _ := doJSON(t, h, http.MethodPost, "/v1/hooks/review", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d, want 401", rec.Code)
	}

	// Valid signature suspends at the approval gate.
	req := httptest.NewRequest(http.MethodPost, "/v1/hooks/review", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	req.Header.Set(trigger.SignatureHeader, trigger.Sign("hooksecret", []byte(body)))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("signed status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "suspended" {
		t.Errorf("status = %v, want suspended", out["status"])
	}

	// Workflow without a webhook binding.
	rec, _ = doJSON(t, h, http.MethodPost, "/v1/hooks/simple", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unbound status = %d, want 400", rec.Code)
	}
}

func TestExecutionLifecycleOverHTTP(t *testing.T) {
	h, _ := newHandler(t)

	// Start an execution that suspends at the gate.
	rec, out := doJSON(t, h, http.MethodPost, "/v1/workflows/review/trigger", `{"doc_id":"d-2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger status = %d, body = %v", rec.Code, out)
	}
	if out["status"] != "suspended" {
		t.Fatalf("status = %v, want suspended", out["status"])
	}
	execID, _ := out["execution_id"].(string)
	if execID == "" {
		t.Fatal("execution_id missing")
	}

	// Get the execution.
	rec, out = doJSON(t, h, http.MethodGet, "/v1/executions/"+execID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if out["workflow"] != "review" {
		t.Errorf("workflow = %v", out["workflow"])
	}

	// List filtered by status.
	req := httptest.NewRequest(http.MethodGet, "/v1/executions?status=suspended", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("suspended executions = %d, want 1", len(list))
	}

	// Resume without an approval suspends again.
	rec, out = doJSON(t, h, http.MethodPost, "/v1/executions/"+execID+"/resume", "")
	if rec.Code != http.StatusOK || out["status"] != "suspended" {
		t.Fatalf("premature resume: status = %d, body = %v", rec.Code, out)
	}

	// Approve the gate.
	rec, out = doJSON(t, h, http.MethodPost, "/v1/executions/"+execID+"/approve",
		`{"step":"gate","decision":{"approved":true}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %v", rec.Code, out)
	}
	if out["status"] != "completed" {
		t.Fatalf("status = %v, want completed", out["status"])
	}
	output, _ := out["output"].(map[string]any)
	decision, _ := output["decision"].(map[string]any)
	if decision["approved"] != true {
		t.Errorf("decision = %v", output["decision"])
	}

	// Timeline shows both steps.
	req = httptest.NewRequest(http.MethodGet, "/v1/executions/"+execID+"/timeline", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", rr.Code)
	}
	var entries []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("timeline entries = %d, want 2", len(entries))
	}

	// Resuming a completed execution conflicts.
	rec, _ = doJSON(t, h, http.MethodPost, "/v1/executions/"+execID+"/resume", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("resume terminal status = %d, want 409", rec.Code)
	}
}

const deployYAML = `
name: deploy
version: "1"
triggers:
  - kind: http
    method: POST
    path: /deploys/:env
    inputs: [env, artifact]
state:
  schema:
    result: string
flow:
  - step:
      name: ship
      op: test.ship
      input:
        env: ${input.env}
        artifact: ${input.artifact}
      set: [result]
output:
  result: ${state.result}
`

func TestHTTPBindingRoute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Build(memory.New(), engine.WithLogger(logger))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	eng.RegisterOperation(operation.Func{
		Name: "test.ship",
		Fn: func(_ context.Context, req *operation.Request) (*operation.Result, error) {
			env, _ := req.Input["env"].(string)
			artifact, _ := req.Input["artifact"].(string)
			return &operation.Result{Output: map[string]any{"result": artifact + " to " + env}}, nil
		},
	})
	if _, err := eng.RegisterWorkflow([]byte(deployYAML)); err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}
	h := api.NewServer(eng).Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/deploys/staging", `{"artifact":"app-1.2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}
	if out["status"] != "completed" {
		t.Fatalf("status = %v, want completed", out["status"])
	}
	output, _ := out["output"].(map[string]any)
	if output["result"] != "app-1.2 to staging" {
		t.Errorf("output = %v", output)
	}

	// The binding's method is enforced by the router.
	rec, _ = doJSON(t, h, http.MethodGet, "/deploys/staging", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d, want 405", rec.Code)
	}
}

func TestGetExecution_Invalid(t *testing.T) {
	h, _ := newHandler(t)

	rec, _ := doJSON(t, h, http.MethodGet, "/v1/executions/not-an-id", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}
}

func TestStats(t *testing.T) {
	h, _ := newHandler(t)

	if rec, out := doJSON(t, h, http.MethodPost, "/v1/workflows/simple/trigger", `{"doc_id":"d-3"}`); rec.Code != http.StatusOK {
		t.Fatalf("trigger: %v", out)
	}

	rec, out := doJSON(t, h, http.MethodGet, "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	execs, _ := out["executions"].(map[string]any)
	if execs["completed"] != 1.0 {
		t.Errorf("completed = %v, want 1", execs["completed"])
	}
	if out["workflows"] != 2.0 {
		t.Errorf("workflows = %v, want 2", out["workflows"])
	}
}
