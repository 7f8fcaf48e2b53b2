package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// listExecutions returns executions filtered by workflow and status.
// (GET /v1/executions?workflow=&status=&limit=&offset=)
func (s *Server) listExecutions(c echo.Context) error {
	ctx := c.Request().Context()

	opts := record.ListOpts{
		Workflow: c.QueryParam("workflow"),
		Status:   state.Status(c.QueryParam("status")),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		opts.Offset = n
	}

	execs, err := s.eng.Store().ListExecutions(ctx, opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, execs)
}

// getExecution returns a single execution record.
// (GET /v1/executions/:executionId)
func (s *Server) getExecution(c echo.Context) error {
	ctx := c.Request().Context()

	execID, err := id.ParseExecutionID(c.Param("executionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id: "+err.Error())
	}

	exec, err := s.eng.Store().GetExecution(ctx, execID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, exec)
}

// getTimeline returns the per-step checkpoint timeline of an execution.
// (GET /v1/executions/:executionId/timeline)
func (s *Server) getTimeline(c echo.Context) error {
	ctx := c.Request().Context()

	execID, err := id.ParseExecutionID(c.Param("executionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id: "+err.Error())
	}

	entries, err := s.eng.Executor().Timeline(ctx, execID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// resumeExecution re-drives a suspended execution. Gates whose input
// has not arrived yet suspend it again.
// (POST /v1/executions/:executionId/resume)
func (s *Server) resumeExecution(c echo.Context) error {
	ctx := c.Request().Context()

	execID, err := id.ParseExecutionID(c.Param("executionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id: "+err.Error())
	}

	resp, err := s.eng.Dispatcher().Resume(ctx, execID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ApproveRequest carries an approval decision for a suspended gate step.
type ApproveRequest struct {
	// Step names the suspended approval.gate step.
	Step string `json:"step"`
	// Decision is delivered to the gate as its event payload.
	Decision any `json:"decision"`
}

// approveExecution publishes an approval event for a suspended gate
// step and resumes the execution.
// (POST /v1/executions/:executionId/approve)
func (s *Server) approveExecution(c echo.Context) error {
	ctx := c.Request().Context()

	execID, err := id.ParseExecutionID(c.Param("executionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id: "+err.Error())
	}

	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Step == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "step is required")
	}

	payload, err := json.Marshal(req.Decision)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decision: "+err.Error())
	}

	if _, err := s.eng.Bus().Publish(ctx, event.ApprovalName(execID.String(), req.Step), payload); err != nil {
		return httpError(err)
	}

	resp, err := s.eng.Dispatcher().Resume(ctx, execID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ReplayRequest names the step to replay an execution from.
type ReplayRequest struct {
	Step string `json:"step"`
}

// replayExecution discards checkpoints from the named step onward and
// re-executes. Steps before it are served from their checkpoints.
// (POST /v1/executions/:executionId/replay)
func (s *Server) replayExecution(c echo.Context) error {
	ctx := c.Request().Context()

	execID, err := id.ParseExecutionID(c.Param("executionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id: "+err.Error())
	}

	var req ReplayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Step == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "step is required")
	}

	exec, err := s.eng.Executor().ReplayFrom(ctx, execID, req.Step)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, exec)
}
