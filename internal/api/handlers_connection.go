// handlers_connection.go - Live connection handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/livesync"
	"github.com/macapark/dashboard/internal/store"
)

// ConnectionHandlerImpl implements the ConnectionHandler interface
type ConnectionHandlerImpl struct {
	state   *store.Store
	backend Backend
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(state *store.Store, backend Backend) ConnectionHandler {
	return &ConnectionHandlerImpl{state: state, backend: backend}
}

type connectionResponse struct {
	State      string          `json:"state"`
	Configured bool            `json:"configured"`
	Stats      *livesync.Stats `json:"stats,omitempty"`
}

func (h *ConnectionHandlerImpl) status() connectionResponse {
	resp := connectionResponse{State: string(h.state.Snapshot().ConnectionState)}
	if stats, ok := h.backend.LiveStats(); ok {
		resp.Configured = true
		resp.Stats = &stats
	}
	return resp
}

// HandleGetConnection returns the connection state and client statistics
func (h *ConnectionHandlerImpl) HandleGetConnection(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status())
}

// HandleReconnect drops the current connection and dials again at once
func (h *ConnectionHandlerImpl) HandleReconnect(c echo.Context) error {
	if err := h.backend.Reconnect(); err != nil {
		if errors.Is(err, livesync.ErrNoURL) {
			return NewServiceUnavailableError("push URL is not configured")
		}
		return NewInternalError("failed to reconnect", err)
	}
	return c.JSON(http.StatusAccepted, h.status())
}
