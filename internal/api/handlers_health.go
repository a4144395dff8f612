// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/store"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	state   *store.Store
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(state *store.Store, version string) HealthHandler {
	return &HealthHandlerImpl{
		state:   state,
		version: version,
	}
}

// HandleHealth returns server health along with the dashboard status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	s := h.state.Snapshot()
	resp := map[string]interface{}{
		"status":     "ok",
		"version":    h.version,
		"connection": s.ConnectionState,
		"lotLoaded":  s.Lot != nil,
	}
	if s.Error != nil {
		resp["error"] = *s.Error
	}
	return c.JSON(http.StatusOK, resp)
}
