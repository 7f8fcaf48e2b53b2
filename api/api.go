// Package api exposes the engine over HTTP. Routes cover manual and
// webhook triggering, execution inspection, approvals, replay, and
// health/stats endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/engine"
	"github.com/weftlabs/weft/trigger"
)

// Server holds the HTTP handlers for the weft API.
type Server struct {
	eng *engine.Engine
}

// NewServer creates a Server from an Engine.
func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

// Handler returns the fully assembled http.Handler with all routes.
func (s *Server) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	s.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all API routes on the given Echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.healthz)

	g := e.Group("/v1")

	g.GET("/workflows", s.listWorkflows)
	g.GET("/workflows/:name", s.getWorkflow)
	g.POST("/workflows/:name/trigger", s.triggerWorkflow)

	g.POST("/hooks/:name", s.webhook)

	g.GET("/executions", s.listExecutions)
	g.GET("/executions/:executionId", s.getExecution)
	g.GET("/executions/:executionId/timeline", s.getTimeline)
	g.POST("/executions/:executionId/resume", s.resumeExecution)
	g.POST("/executions/:executionId/approve", s.approveExecution)
	g.POST("/executions/:executionId/replay", s.replayExecution)

	g.GET("/stats", s.stats)

	s.registerHTTPBindings(e)
}

// registerHTTPBindings adds one route per workflow with an http trigger
// binding, at the method and path the binding declares. Workflows must
// be registered before the handler is built.
func (s *Server) registerHTTPBindings(e *echo.Echo) {
	for _, name := range s.eng.Workflows().Names() {
		wf, ok := s.eng.Workflows().Get(name)
		if !ok {
			continue
		}
		binding, ok := wf.Binding(definition.TriggerHTTP)
		if !ok {
			continue
		}
		method := binding.Method
		if method == "" {
			method = http.MethodPost
		}
		e.Add(method, binding.Path, s.httpTrigger(name))
	}
}

// httpError maps domain errors to HTTP status codes.
func httpError(err error) error {
	var verr *definition.ValidationError
	switch {
	case errors.Is(err, weft.ErrWorkflowNotFound),
		errors.Is(err, weft.ErrExecutionNotFound),
		errors.Is(err, weft.ErrCheckpointNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, weft.ErrTriggerNotBound),
		errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, weft.ErrNotSuspended),
		errors.Is(err, weft.ErrInvalidState),
		errors.Is(err, weft.ErrExecutionExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, trigger.ErrSignatureMismatch):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
