// handlers_guidance.go - Spot guidance handler
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/guidance"
	"github.com/macapark/dashboard/internal/store"
)

// GuidanceHandlerImpl implements the GuidanceHandler interface
type GuidanceHandlerImpl struct {
	state *store.Store
	opts  guidance.Options
	memo  *guidance.Memo
}

// NewGuidanceHandler creates a guidance handler. With cache set, results
// are reused until the lot or occupancy changes.
func NewGuidanceHandler(state *store.Store, opts guidance.Options, cache bool) GuidanceHandler {
	h := &GuidanceHandlerImpl{state: state, opts: opts}
	if cache {
		h.memo = guidance.NewMemo(opts)
	}
	return h
}

// HandleGetGuidance ranks open spots for ?filter=best|accessible|ev and
// ?entrance=<id>. An unknown entrance falls back to the first one.
func (h *GuidanceHandlerImpl) HandleGetGuidance(c echo.Context) error {
	filter, err := guidance.ParseFilter(c.QueryParam("filter"))
	if err != nil {
		return NewValidationError("filter", err)
	}
	entranceID := c.QueryParam("entrance")

	s := h.state.Snapshot()
	var res guidance.Result
	if h.memo != nil {
		res = h.memo.Compute(s, filter, entranceID)
	} else {
		res = guidance.ComputeWithOptions(s.Lot, s.SpotStates, filter, entranceID, h.opts)
	}
	return c.JSON(http.StatusOK, res)
}
