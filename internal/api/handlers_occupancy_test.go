package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/macapark/dashboard/internal/history"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

func TestGetOccupancy(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.state.Dispatch(store.UpdateSpot{SpotID: "S2", Occupied: true, TS: "2025-01-01T00:00:00Z"})
	h.state.Dispatch(store.UpdateSpot{SpotID: "S1", Occupied: false, TS: "2025-01-01T00:00:01Z"})

	rec := h.do(http.MethodGet, "/api/occupancy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body occupancyResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "lot-1", body.LotID)
	require.Len(t, body.Spots, 2)
	assert.Equal(t, "S1", body.Spots[0].SpotID)
	assert.Equal(t, "S2", body.Spots[1].SpotID)
	assert.True(t, body.Spots[1].Occupied)
	assert.Equal(t, store.Counts{Total: 2, Occupied: 1, Free: 1}, body.Counts)
	assert.Equal(t, h.state.Snapshot().OccupancyVersion, body.OccupancyVersion)
}

func TestGetOccupancyMsgpack(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.state.Dispatch(store.UpdateSpot{SpotID: "S1", Occupied: true, TS: "t"})

	rec := h.do(http.MethodGet, "/api/occupancy/msgpack", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var body occupancyResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Spots, 1)
	assert.Equal(t, models.SpotState{SpotID: "S1", Occupied: true, LastUpdated: "t"}, body.Spots[0])
	assert.Equal(t, 1, body.Counts.Unknown)
}

func TestSpotHistory(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.history.events = []history.Event{
		{LotID: "lot-1", SpotID: "S1", Occupied: true, TS: "b"},
		{LotID: "lot-1", SpotID: "S2", Occupied: true, TS: "a"},
	}

	rec := h.do(http.MethodGet, "/api/spots/S1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SpotID string          `json:"spotId"`
		Events []history.Event `json:"events"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "S1", body.SpotID)
	require.Len(t, body.Events, 1)
	assert.Equal(t, history.DefaultQueryLimit, h.history.limit)

	h.do(http.MethodGet, "/api/spots/S1/history?limit=5000", "")
	assert.Equal(t, maxHistoryLimit, h.history.limit)

	rec = h.do(http.MethodGet, "/api/spots/S1/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/spots/none/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)

	h.history.err = errors.New("db gone")
	rec = h.do(http.MethodGet, "/api/spots/S1/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSpotHistory_Disabled(t *testing.T) {
	s := store.New()
	handler := NewOccupancyHandler(s, nil)
	h := newAPIHarness(t, backendLot())
	h.e.GET("/disabled/:spotId", handler.HandleSpotHistory)

	rec := h.do(http.MethodGet, "/disabled/S1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetGuidance(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodGet, "/api/guidance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		RecommendedSpots []struct {
			Spot     models.SpotDefinition `json:"spot"`
			Distance float64               `json:"distance"`
		} `json:"recommendedSpots"`
		PathPoints []models.Point   `json:"pathPoints"`
		Entrance   *models.Entrance `json:"entrance"`
	}
	decodeBody(t, rec, &res)
	require.Len(t, res.RecommendedSpots, 2)
	assert.Equal(t, "S1", res.RecommendedSpots[0].Spot.SpotID)
	assert.Len(t, res.PathPoints, 3)
	require.NotNil(t, res.Entrance)
	assert.Equal(t, "gate", res.Entrance.ID)

	h.state.Dispatch(store.UpdateSpot{SpotID: "S1", Occupied: true})
	rec = h.do(http.MethodGet, "/api/guidance?filter=best&entrance=gate", "")
	res.RecommendedSpots = nil
	decodeBody(t, rec, &res)
	require.Len(t, res.RecommendedSpots, 1)
	assert.Equal(t, "S2", res.RecommendedSpots[0].Spot.SpotID)

	rec = h.do(http.MethodGet, "/api/guidance?filter=accessible", "")
	res.RecommendedSpots = nil
	decodeBody(t, rec, &res)
	assert.Empty(t, res.RecommendedSpots)
	assert.Equal(t, []models.Point{}, res.PathPoints)

	rec = h.do(http.MethodGet, "/api/guidance?filter=nearest", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", apiErrorOf(t, rec).Code)
}
