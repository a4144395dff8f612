// handlers_settings.go - Backend endpoint settings handlers
package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// SettingsHandlerImpl implements the SettingsHandler interface
type SettingsHandlerImpl struct {
	state   *store.Store
	backend Backend
	persist SettingsStore
}

// NewSettingsHandler creates a settings handler. persist may be nil, in
// which case settings only live until restart.
func NewSettingsHandler(state *store.Store, backend Backend, persist SettingsStore) SettingsHandler {
	return &SettingsHandlerImpl{
		state:   state,
		backend: backend,
		persist: persist,
	}
}

// HandleGetSettings returns the active endpoint settings
func (h *SettingsHandlerImpl) HandleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.Snapshot().Settings)
}

// HandleUpdateSettings validates, persists and applies new endpoints. The
// live clients are rebuilt and the lot is reloaded before responding.
func (h *SettingsHandlerImpl) HandleUpdateSettings(c echo.Context) error {
	var req models.ParkingSettings
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	req.RestBaseURL = strings.TrimSpace(req.RestBaseURL)
	req.WSURL = strings.TrimSpace(req.WSURL)

	if err := validateURL(req.RestBaseURL, "http", "https"); err != nil {
		return NewValidationError("restBaseUrl", err)
	}
	if err := validateURL(req.WSURL, "ws", "wss"); err != nil {
		return NewValidationError("wsUrl", err)
	}

	if h.persist != nil {
		if err := h.persist.SaveParkingSettings(req); err != nil {
			return NewInternalError("failed to save settings", err)
		}
	}
	h.backend.Reconfigure(req)

	s := h.state.Snapshot()
	resp := map[string]interface{}{
		"settings":   s.Settings,
		"lotLoaded":  s.Lot != nil,
		"connection": s.ConnectionState,
	}
	if s.Error != nil {
		resp["error"] = *s.Error
	}
	return c.JSON(http.StatusOK, resp)
}

// validateURL accepts an empty value or an absolute URL with one of the
// given schemes and a host.
func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	ok := false
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			ok = true
			break
		}
	}
	if !ok {
		return errors.New("URL must start with " + strings.Join(schemes, ":// or ") + "://")
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
