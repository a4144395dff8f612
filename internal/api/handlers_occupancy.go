// handlers_occupancy.go - Occupancy and spot history handlers
package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/macapark/dashboard/internal/history"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

const maxHistoryLimit = 1000

// OccupancyHandlerImpl implements the OccupancyHandler interface
type OccupancyHandlerImpl struct {
	state   *store.Store
	history HistoryStore
}

// NewOccupancyHandler creates a new occupancy handler. history may be nil.
func NewOccupancyHandler(state *store.Store, history HistoryStore) OccupancyHandler {
	return &OccupancyHandlerImpl{
		state:   state,
		history: history,
	}
}

// occupancyResponse is shared by the JSON and msgpack endpoints.
type occupancyResponse struct {
	LotID            string             `json:"lotId" msgpack:"lotId"`
	Connection       string             `json:"connection" msgpack:"connection"`
	Spots            []models.SpotState `json:"spots" msgpack:"spots"`
	Counts           store.Counts       `json:"counts" msgpack:"counts"`
	OccupancyVersion uint64             `json:"occupancyVersion" msgpack:"occupancyVersion"`
}

func (h *OccupancyHandlerImpl) snapshot() occupancyResponse {
	s := h.state.Snapshot()
	spots := make([]models.SpotState, 0, len(s.SpotStates))
	for _, st := range s.SpotStates {
		spots = append(spots, st)
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].SpotID < spots[j].SpotID })

	resp := occupancyResponse{
		Connection:       string(s.ConnectionState),
		Spots:            spots,
		Counts:           store.CountOccupancy(s),
		OccupancyVersion: s.OccupancyVersion,
	}
	if s.Lot != nil {
		resp.LotID = s.Lot.LotID
	}
	return resp
}

// HandleGetOccupancy returns every known spot state sorted by spot id
func (h *OccupancyHandlerImpl) HandleGetOccupancy(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// HandleGetOccupancyMsgpack returns the occupancy in MessagePack format
func (h *OccupancyHandlerImpl) HandleGetOccupancyMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleSpotHistory returns recorded transitions of one spot, newest first
func (h *OccupancyHandlerImpl) HandleSpotHistory(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("occupancy history is disabled")
	}
	spotID := c.Param("spotId")
	if spotID == "" {
		return NewValidationError("spotId", nil)
	}

	limit := history.DefaultQueryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit", err)
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := h.history.SpotHistory(c.Request().Context(), spotID, limit)
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	if events == nil {
		events = []history.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"spotId": spotID,
		"events": events,
	})
}
