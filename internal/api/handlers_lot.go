// handlers_lot.go - Lot definition handlers
package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/dashboard"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/parser"
	"github.com/macapark/dashboard/internal/storage"
	"github.com/macapark/dashboard/internal/store"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"

	recentFilesLimit = 20
)

// LotHandlerImpl implements the LotHandler interface
type LotHandlerImpl struct {
	state       *store.Store
	backend     Backend
	files       storage.Store
	importLimit int64
}

// NewLotHandler creates a new lot handler. importLimit caps the decoded
// import size; zero means parser.MaxImportSize.
func NewLotHandler(state *store.Store, backend Backend, files storage.Store, importLimit int64) LotHandler {
	if importLimit <= 0 {
		importLimit = parser.MaxImportSize
	}
	return &LotHandlerImpl{
		state:       state,
		backend:     backend,
		files:       files,
		importLimit: importLimit,
	}
}

type importLotRequest struct {
	Name        string `json:"name"`
	Data        string `json:"data"` // Base64-encoded file content
	ImageWidth  int    `json:"imageWidth,omitempty"`
	ImageHeight int    `json:"imageHeight,omitempty"`
}

func (r *importLotRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name", nil)
	}
	if r.Data == "" {
		return NewValidationError("data", nil)
	}
	if r.ImageWidth < 0 || r.ImageHeight < 0 {
		return NewValidationError("imageWidth", errors.New("image size must not be negative"))
	}
	return nil
}

// HandleGetLot returns the current lot with an ETag derived from its content
func (h *LotHandlerImpl) HandleGetLot(c echo.Context) error {
	lot := h.state.Snapshot().Lot
	if lot == nil {
		return NewNotFoundError("lot", "current")
	}

	etag := `"` + store.LotFingerprint(lot) + `"`
	c.Response().Header().Set(headerETag, etag)
	if match := c.Request().Header.Get(headerIfNoneMatch); match != "" && match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, lot)
}

// HandlePutLot replaces the lot with a validated definition
func (h *LotHandlerImpl) HandlePutLot(c echo.Context) error {
	var lot models.LotDefinition
	if err := c.Bind(&lot); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := parser.ValidateLot(&lot); err != nil {
		return NewValidationError("lot", err)
	}

	h.state.Dispatch(store.SetLot{Lot: &lot})
	return c.JSON(http.StatusOK, &lot)
}

// HandleImportLot stores an uploaded lot file, decodes it and applies it
func (h *LotHandlerImpl) HandleImportLot(c echo.Context) error {
	var req importLotRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}
	if int64(len(decoded)) > h.importLimit {
		return NewBadRequestError(fmt.Sprintf("file exceeds %d bytes", h.importLimit), nil)
	}

	info, err := h.files.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save lot file", err)
	}

	res, err := parser.Decode(req.Name, decoded, parser.Options{
		ImageWidth:  req.ImageWidth,
		ImageHeight: req.ImageHeight,
	})
	if err != nil {
		if _, serr := h.files.SetStatus(info.ID, storage.StatusRejected, ""); serr != nil {
			c.Logger().Warnf("failed to mark %s rejected: %v", info.ID, serr)
		}
		var verr *parser.ValidationError
		if errors.As(err, &verr) {
			return NewValidationError("data", err)
		}
		return NewBadRequestError("failed to parse lot file", err)
	}

	lot := parser.ApplyImport(h.state.Snapshot().Lot, res)
	h.state.Dispatch(store.SetLot{Lot: lot})

	if updated, err := h.files.SetStatus(info.ID, storage.StatusApplied, lot.LotID); err == nil {
		info = updated
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"file":   info,
		"format": res.Format,
		"lot":    lot,
	})
}

// HandleRecentFiles lists recently imported lot files
func (h *LotHandlerImpl) HandleRecentFiles(c echo.Context) error {
	files, err := h.files.List(recentFilesLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	if files == nil {
		files = []*models.FileInfo{}
	}
	return c.JSON(http.StatusOK, files)
}

// HandleExportSpots downloads the spot list of the current lot
func (h *LotHandlerImpl) HandleExportSpots(c echo.Context) error {
	lot := h.state.Snapshot().Lot
	if lot == nil {
		return NewNotFoundError("lot", "current")
	}
	name := strings.ReplaceAll(lot.LotID, `"`, "") + "-spots.json"
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.JSON(http.StatusOK, parser.ExportSpots(lot))
}

// HandleLoadDemo replaces the lot with the built-in demo lot
func (h *LotHandlerImpl) HandleLoadDemo(c echo.Context) error {
	lot := dashboard.DemoLot()
	h.state.Dispatch(store.SetLot{Lot: lot})
	return c.JSON(http.StatusOK, lot)
}

// HandleSyncLot re-fetches the lot from the parking backend
func (h *LotHandlerImpl) HandleSyncLot(c echo.Context) error {
	if err := h.backend.LoadLot(c.Request().Context()); err != nil {
		if errors.Is(err, dashboard.ErrNotConfigured) {
			return NewServiceUnavailableError(dashboard.ErrMsgNotConfigured)
		}
		return upstreamError("failed to fetch lot", err)
	}
	return c.JSON(http.StatusOK, h.state.Snapshot().Lot)
}

// HandleAvailableLots lists the lots the parking backend offers. The
// caller's bearer token is forwarded when present.
func (h *LotHandlerImpl) HandleAvailableLots(c echo.Context) error {
	rest := h.backend.REST()
	if rest == nil {
		return NewServiceUnavailableError(dashboard.ErrMsgNotConfigured)
	}
	token, _ := bearerToken(c)
	lots, err := rest.FetchAvailableLots(c.Request().Context(), token)
	if err != nil {
		return upstreamError("failed to fetch available lots", err)
	}
	if lots == nil {
		lots = []models.LotDefinition{}
	}
	return c.JSON(http.StatusOK, lots)
}

// HandlePushRemote saves a lot on the parking backend. An empty body
// pushes the current lot.
func (h *LotHandlerImpl) HandlePushRemote(c echo.Context) error {
	token, ok := bearerToken(c)
	if !ok {
		return NewUnauthorizedError("missing bearer token")
	}

	var lot models.LotDefinition
	if err := c.Bind(&lot); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	target := &lot
	if lot.LotID == "" && len(lot.Spots) == 0 {
		target = h.state.Snapshot().Lot
		if target == nil {
			return NewNotFoundError("lot", "current")
		}
	}
	if err := parser.ValidateLot(target); err != nil {
		return NewValidationError("lot", err)
	}

	updated, err := h.backend.PushLot(c.Request().Context(), token, target)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotConfigured) {
			return NewServiceUnavailableError(dashboard.ErrMsgNotConfigured)
		}
		return upstreamError("failed to save lot", err)
	}
	return c.JSON(http.StatusOK, updated)
}

func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}
