// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/history"
	"github.com/macapark/dashboard/internal/livesync"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/restclient"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// LotHandler handles the lot definition and its import/export
type LotHandler interface {
	HandleGetLot(c echo.Context) error
	HandlePutLot(c echo.Context) error
	HandleImportLot(c echo.Context) error
	HandleRecentFiles(c echo.Context) error
	HandleExportSpots(c echo.Context) error
	HandleLoadDemo(c echo.Context) error
	HandleSyncLot(c echo.Context) error
	HandlePushRemote(c echo.Context) error
	HandleAvailableLots(c echo.Context) error
}

// OccupancyHandler handles occupancy reads and spot history
type OccupancyHandler interface {
	HandleGetOccupancy(c echo.Context) error
	HandleGetOccupancyMsgpack(c echo.Context) error
	HandleSpotHistory(c echo.Context) error
}

// GuidanceHandler handles spot recommendations
type GuidanceHandler interface {
	HandleGetGuidance(c echo.Context) error
}

// SettingsHandler handles the backend endpoint settings
type SettingsHandler interface {
	HandleGetSettings(c echo.Context) error
	HandleUpdateSettings(c echo.Context) error
}

// AuthHandler proxies account operations to the parking backend
type AuthHandler interface {
	HandleLogin(c echo.Context) error
	HandleRegister(c echo.Context) error
	HandleMe(c echo.Context) error
}

// ConnectionHandler reports and controls the live push connection
type ConnectionHandler interface {
	HandleGetConnection(c echo.Context) error
	HandleReconnect(c echo.Context) error
}

// Backend is the live side of the dashboard: the REST client, the push
// client and their reconfiguration. dashboard.Provider implements it.
type Backend interface {
	LoadLot(ctx context.Context) error
	PushLot(ctx context.Context, token string, lot *models.LotDefinition) (*models.LotDefinition, error)
	Reconnect() error
	Reconfigure(settings models.ParkingSettings)
	REST() *restclient.Client
	LiveStats() (livesync.Stats, bool)
}

// SettingsStore persists the backend endpoints
type SettingsStore interface {
	SaveParkingSettings(s models.ParkingSettings) error
}

// HistoryStore answers spot history queries
type HistoryStore interface {
	SpotHistory(ctx context.Context, spotID string, limit int) ([]history.Event, error)
}
