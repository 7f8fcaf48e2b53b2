package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/trigger"
)

// triggerWorkflow starts a manual execution of the named workflow.
// The request body is the input payload.
// (POST /v1/workflows/:name/trigger)
func (s *Server) triggerWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	var input map[string]any
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	resp, err := s.eng.Dispatcher().Dispatch(ctx, definition.TriggerManual, name, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// httpTrigger returns a handler bound to a single workflow's http
// trigger. The JSON body becomes the input payload; path parameters
// are merged on top of it.
func (s *Server) httpTrigger(workflow string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var input map[string]any
		if err := c.Bind(&input); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if names := c.ParamNames(); len(names) > 0 {
			if input == nil {
				input = make(map[string]any, len(names))
			}
			for _, p := range names {
				input[p] = c.Param(p)
			}
		}

		resp, err := s.eng.Dispatcher().Dispatch(ctx, definition.TriggerHTTP, workflow, input)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// webhook starts a webhook-triggered execution. When the binding
// declares a secret, the X-Weft-Signature header must carry a valid
// HMAC-SHA256 of the raw body.
// (POST /v1/hooks/:name)
func (s *Server) webhook(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	wf, ok := s.eng.Workflows().Get(name)
	if !ok {
		return httpError(weft.ErrWorkflowNotFound)
	}
	binding, ok := wf.Binding(definition.TriggerWebhook)
	if !ok {
		return httpError(weft.ErrTriggerNotBound)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}

	if binding.Secret != "" {
		sig := c.Request().Header.Get(trigger.SignatureHeader)
		if err := trigger.VerifySignature(binding.Secret, body, sig); err != nil {
			return httpError(err)
		}
	}

	var input map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &input); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		}
	}

	resp, err := s.eng.Dispatcher().Dispatch(ctx, definition.TriggerWebhook, name, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
