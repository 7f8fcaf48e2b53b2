// Package client provides a Go client for a remote weft instance over
// its HTTP API.
//
// Usage:
//
//	c := client.New("http://edge-1:8080")
//
//	resp, err := c.Trigger(ctx, "order-pipeline", map[string]any{"order_id": "o-1"})
//	if resp.Status == state.StatusSuspended {
//	    resp, err = c.Approve(ctx, resp.ExecutionID, "gate", map[string]any{"approved": true})
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
	"github.com/weftlabs/weft/trigger"
)

// Client talks to a remote weft server.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a Client for the given base URL, e.g. "http://edge-1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weft/client: server returned %d: %s", e.StatusCode, e.Message)
}

// Trigger starts a manual execution of the named workflow.
func (c *Client) Trigger(ctx context.Context, workflow string, input map[string]any) (*trigger.Response, error) {
	var resp trigger.Response
	err := c.do(ctx, http.MethodPost, "/v1/workflows/"+url.PathEscape(workflow)+"/trigger", input, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetExecution fetches one execution record.
func (c *Client) GetExecution(ctx context.Context, execID id.ExecutionID) (*state.Execution, error) {
	var exec state.Execution
	if err := c.do(ctx, http.MethodGet, "/v1/executions/"+execID.String(), nil, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// ListExecutions fetches executions matching the filter.
func (c *Client) ListExecutions(ctx context.Context, opts record.ListOpts) ([]*state.Execution, error) {
	q := url.Values{}
	if opts.Workflow != "" {
		q.Set("workflow", opts.Workflow)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/executions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var execs []*state.Execution
	if err := c.do(ctx, http.MethodGet, path, nil, &execs); err != nil {
		return nil, err
	}
	return execs, nil
}

// TimelineEntry mirrors one step of the server-side execution timeline.
type TimelineEntry struct {
	Step  string          `json:"step"`
	State state.StepState `json:"state"`
	At    *time.Time      `json:"at,omitempty"`
}

// Timeline fetches the per-step checkpoint timeline of an execution.
func (c *Client) Timeline(ctx context.Context, execID id.ExecutionID) ([]TimelineEntry, error) {
	var entries []TimelineEntry
	if err := c.do(ctx, http.MethodGet, "/v1/executions/"+execID.String()+"/timeline", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Resume re-drives a suspended execution.
func (c *Client) Resume(ctx context.Context, execID id.ExecutionID) (*trigger.Response, error) {
	var resp trigger.Response
	if err := c.do(ctx, http.MethodPost, "/v1/executions/"+execID.String()+"/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Approve delivers a decision to a suspended gate step and resumes.
func (c *Client) Approve(ctx context.Context, execID id.ExecutionID, step string, decision any) (*trigger.Response, error) {
	body := map[string]any{"step": step, "decision": decision}
	var resp trigger.Response
	if err := c.do(ctx, http.MethodPost, "/v1/executions/"+execID.String()+"/approve", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Replay discards checkpoints from the named step onward and re-executes.
func (c *Client) Replay(ctx context.Context, execID id.ExecutionID, step string) (*state.Execution, error) {
	body := map[string]any{"step": step}
	var exec state.Execution
	if err := c.do(ctx, http.MethodPost, "/v1/executions/"+execID.String()+"/replay", body, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// Workflows lists the registered workflow names.
func (c *Client) Workflows(ctx context.Context) ([]string, error) {
	var out struct {
		Workflows []string `json:"workflows"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// Health reports whether the server and its store are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do issues one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("weft/client: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("weft/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("weft/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weft/client: decode response: %w", err)
	}
	return nil
}
