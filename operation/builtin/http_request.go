package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weftlabs/weft/operation"
)

// HTTPRequest performs an outbound HTTP call. Config: "url" (required),
// "method" (default GET), "assign" (required), optional "headers" map.
// A non-empty request input is sent as a JSON body. The parsed JSON
// response body, or the raw body as a string when it is not JSON, is
// written to the assign field. Responses with status >= 500 fail
// retryably; 4xx responses fail permanently.
type HTTPRequest struct {
	client *http.Client
}

// NewHTTPRequest creates the http.request handler. A nil client gets a
// default with a 30s overall timeout; step timeouts still apply through
// the request context.
func NewHTTPRequest(client *http.Client) *HTTPRequest {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRequest{client: client}
}

func (h *HTTPRequest) Kind() string { return "http.request" }

func (h *HTTPRequest) Execute(ctx context.Context, req *operation.Request) (*operation.Result, error) {
	url, err := configString(req.Config, "url")
	if err != nil {
		return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	assign, err := configString(req.Config, "assign")
	if err != nil {
		return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	method := optString(req.Config, "method", http.MethodGet)

	var body io.Reader
	if len(req.Input) > 0 {
		raw, marshalErr := json.Marshal(req.Input)
		if marshalErr != nil {
			return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Permanent: true, Err: marshalErr}
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if hdrs, ok := req.Config["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			if s, ok := v.(string); ok {
				httpReq.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &operation.Error{Kind: h.Kind(), Step: req.Step, Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &operation.Error{
			Kind: h.Kind(), Step: req.Step,
			Err: fmt.Errorf("upstream returned %d", resp.StatusCode),
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &operation.Error{
			Kind: h.Kind(), Step: req.Step, Permanent: true,
			Err: fmt.Errorf("upstream returned %d", resp.StatusCode),
		}
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = string(raw)
	}
	return &operation.Result{Output: map[string]any{assign: parsed}}, nil
}
