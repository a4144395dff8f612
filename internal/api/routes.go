// routes.go - Route registration helpers
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/macapark/dashboard/internal/guidance"
	"github.com/macapark/dashboard/internal/storage"
	"github.com/macapark/dashboard/internal/store"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	State    *store.Store
	Backend  Backend
	Files    storage.Store
	Settings SettingsStore
	// History is nil when history recording is disabled.
	History  HistoryStore
	Guidance guidance.Options
	// DisableGuidanceCache computes guidance on every request.
	DisableGuidanceCache bool
	ImportLimit          int64
	Version              string
	Logger               *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Lot        LotHandler
	Occupancy  OccupancyHandler
	Guidance   GuidanceHandler
	Settings   SettingsHandler
	Auth       AuthHandler
	Connection ConnectionHandler
	Hub        *Hub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Health:     NewHealthHandler(deps.State, deps.Version),
		Lot:        NewLotHandler(deps.State, deps.Backend, deps.Files, deps.ImportLimit),
		Occupancy:  NewOccupancyHandler(deps.State, deps.History),
		Guidance:   NewGuidanceHandler(deps.State, deps.Guidance, !deps.DisableGuidanceCache),
		Settings:   NewSettingsHandler(deps.State, deps.Backend, deps.Settings),
		Auth:       NewAuthHandler(deps.Backend),
		Connection: NewConnectionHandler(deps.State, deps.Backend),
		Hub:        NewHub(deps.State, logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Lot definition
	lotGroup := apiGroup.Group("/lot")
	lotGroup.GET("", handlers.Lot.HandleGetLot)
	lotGroup.PUT("", handlers.Lot.HandlePutLot)
	lotGroup.POST("/import", handlers.Lot.HandleImportLot)
	lotGroup.GET("/files/recent", handlers.Lot.HandleRecentFiles)
	lotGroup.GET("/export", handlers.Lot.HandleExportSpots)
	lotGroup.POST("/demo", handlers.Lot.HandleLoadDemo)
	lotGroup.POST("/sync", handlers.Lot.HandleSyncLot)
	lotGroup.PUT("/remote", handlers.Lot.HandlePushRemote)
	lotGroup.GET("/available", handlers.Lot.HandleAvailableLots)

	// Occupancy and guidance
	apiGroup.GET("/occupancy", handlers.Occupancy.HandleGetOccupancy)
	apiGroup.GET("/occupancy/msgpack", handlers.Occupancy.HandleGetOccupancyMsgpack)
	apiGroup.GET("/spots/:spotId/history", handlers.Occupancy.HandleSpotHistory)
	apiGroup.GET("/guidance", handlers.Guidance.HandleGetGuidance)

	// Live connection
	apiGroup.GET("/connection", handlers.Connection.HandleGetConnection)
	apiGroup.POST("/connection/reconnect", handlers.Connection.HandleReconnect)

	// Settings
	apiGroup.GET("/settings", handlers.Settings.HandleGetSettings)
	apiGroup.PUT("/settings", handlers.Settings.HandleUpdateSettings)

	// Accounts
	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/login", handlers.Auth.HandleLogin)
	authGroup.POST("/register", handlers.Auth.HandleRegister)
	authGroup.GET("/me", handlers.Auth.HandleMe)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.Hub.HandleWebSocket)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   []string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/api/ws"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := make([]string, 0, len(cfg.AllowOrigins))
		for _, o := range cfg.AllowOrigins {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, headerIfNoneMatch},
			ExposeHeaders: []string{headerETag},
		}))
	}
}
