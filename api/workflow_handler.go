package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/definition"
)

// ListWorkflowsResponse lists the registered workflow names.
type ListWorkflowsResponse struct {
	Workflows []string `json:"workflows"`
}

// WorkflowResponse summarizes a registered workflow definition.
type WorkflowResponse struct {
	Name     string                   `json:"name"`
	Version  string                   `json:"version"`
	Triggers []definition.TriggerKind `json:"triggers"`
	Steps    []StepSummary            `json:"steps"`
}

// StepSummary describes one step of a workflow.
type StepSummary struct {
	Name      string   `json:"name"`
	Operation string   `json:"operation"`
	Set       []string `json:"set,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// listWorkflows returns the names of all registered workflows.
// (GET /v1/workflows)
func (s *Server) listWorkflows(c echo.Context) error {
	return c.JSON(http.StatusOK, ListWorkflowsResponse{
		Workflows: s.eng.Workflows().Names(),
	})
}

// getWorkflow returns a summary of the named workflow.
// (GET /v1/workflows/:name)
func (s *Server) getWorkflow(c echo.Context) error {
	wf, ok := s.eng.Workflows().Get(c.Param("name"))
	if !ok {
		return httpError(weft.ErrWorkflowNotFound)
	}

	resp := WorkflowResponse{
		Name:    wf.Name,
		Version: wf.Version,
	}
	for _, b := range wf.Triggers {
		resp.Triggers = append(resp.Triggers, b.Kind)
	}
	for _, step := range wf.Steps() {
		resp.Steps = append(resp.Steps, StepSummary{
			Name:      step.Name,
			Operation: step.Op,
			Set:       step.Set,
			DependsOn: wf.Deps(step.Name),
		})
	}
	return c.JSON(http.StatusOK, resp)
}
