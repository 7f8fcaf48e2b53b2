package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weftlabs/weft/record"
	"github.com/weftlabs/weft/state"
)

// StatsResponse aggregates execution counts per status plus registry
// sizes.
type StatsResponse struct {
	Executions map[state.Status]int `json:"executions"`
	Workflows  int                  `json:"workflows"`
	Operations int                  `json:"operations"`
}

// stats returns aggregate execution statistics.
// (GET /v1/stats)
func (s *Server) stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts := make(map[state.Status]int)
	for _, status := range []state.Status{
		state.StatusPending,
		state.StatusRunning,
		state.StatusSuspended,
		state.StatusCompleted,
		state.StatusFailed,
	} {
		execs, err := s.eng.Store().ListExecutions(ctx, record.ListOpts{Status: status})
		if err != nil {
			return httpError(err)
		}
		counts[status] = len(execs)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Executions: counts,
		Workflows:  len(s.eng.Workflows().Names()),
		Operations: len(s.eng.Operations().Kinds()),
	})
}

// HealthResponse reports store connectivity.
type HealthResponse struct {
	Status string `json:"status"`
}

// healthz checks store connectivity.
// (GET /healthz)
func (s *Server) healthz(c echo.Context) error {
	if err := s.eng.Store().Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
