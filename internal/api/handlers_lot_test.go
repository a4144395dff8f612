package api

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macapark/dashboard/internal/dashboard"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/parser"
	"github.com/macapark/dashboard/internal/storage"
)

func TestHealth(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, true, body["lotLoaded"])
	assert.Equal(t, "disconnected", body["connection"])
}

func TestGetLot_NotLoaded(t *testing.T) {
	h := newAPIHarness(t, nil)

	assert.Equal(t, dashboard.ErrMsgNotConnected, h.state.Snapshot().ErrorString())
	rec := h.do(http.MethodGet, "/api/lot", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", apiErrorOf(t, rec).Code)
}

func TestGetLot_ETag(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodGet, "/api/lot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var lot models.LotDefinition
	decodeBody(t, rec, &lot)
	assert.Equal(t, "lot-1", lot.LotID)
	assert.Len(t, lot.Spots, 2)

	rec = h.do(http.MethodGet, "/api/lot", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	h.do(http.MethodPost, "/api/lot/demo", "")
	rec = h.do(http.MethodGet, "/api/lot", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestPutLot(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodPut, "/api/lot", `{"lot_id":"x","name":"X","spots":[{"spot_id":"A","polygon":[{"x":0,"y":0},{"x":1,"y":0}]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := apiErrorOf(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Details, "at least 3 points")
	assert.Equal(t, "lot-1", h.state.Snapshot().Lot.LotID)

	rec = h.do(http.MethodPut, "/api/lot", `{"lot_id":"x","name":"X","spots":[{"spot_id":"A","polygon":[{"x":0,"y":0},{"x":1,"y":0},{"x":1,"y":1}]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x", h.state.Snapshot().Lot.LotID)

	rec = h.do(http.MethodPut, "/api/lot", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func importBody(name, data string, extra string) string {
	return `{"name":"` + name + `","data":"` + base64.StdEncoding.EncodeToString([]byte(data)) + `"` + extra + `}`
}

func TestImportLot_SpotList(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	spots := `[
		// exported from the editor
		{"spot_id":"Z1","polygon":[{"x":0.1,"y":0.1},{"x":0.2,"y":0.1},{"x":0.2,"y":0.2}]}
	]`
	rec := h.do(http.MethodPost, "/api/lot/import", importBody("spots.jsonc", spots, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		File   models.FileInfo      `json:"file"`
		Format string               `json:"format"`
		Lot    models.LotDefinition `json:"lot"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, parser.FormatSpotsJSON, body.Format)
	assert.Equal(t, storage.StatusApplied, body.File.Status)
	assert.Equal(t, "lot-1", body.File.LotID)

	lot := h.state.Snapshot().Lot
	assert.Equal(t, "lot-1", lot.LotID)
	require.Len(t, lot.Spots, 1)
	assert.Equal(t, "Z1", lot.Spots[0].SpotID)

	rec = h.do(http.MethodGet, "/api/lot/files/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.FileInfo
	decodeBody(t, rec, &files)
	require.Len(t, files, 1)
	assert.Equal(t, "spots.jsonc", files[0].Name)
}

func TestImportLot_CoordinatesYAML(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	yml := "- id: 7\n  coordinates: [[0, 0], [100, 0], [100, 50]]\n"
	rec := h.do(http.MethodPost, "/api/lot/import", importBody("coords.yaml", yml, `,"imageWidth":200,"imageHeight":100`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	lot := h.state.Snapshot().Lot
	require.Len(t, lot.Spots, 1)
	assert.Equal(t, "7", lot.Spots[0].SpotID)
	assert.Equal(t, models.Point{X: 0.5, Y: 0.5}, lot.Spots[0].Polygon[2])
}

func TestImportLot_Rejected(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodPost, "/api/lot/import", importBody("bad.json", `[{"spot_id":"A","polygon":[]}]`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", apiErrorOf(t, rec).Code)
	assert.Equal(t, "lot-1", h.state.Snapshot().Lot.LotID)
	assert.Len(t, h.state.Snapshot().Lot.Spots, 2)

	files, _ := h.files.List(0)
	require.Len(t, files, 1)
	assert.Equal(t, storage.StatusRejected, files[0].Status)

	rec = h.do(http.MethodPost, "/api/lot/import", `{"name":"x.json","data":"%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/api/lot/import", `{"name":"x.json"}`)
	assert.Equal(t, "VALIDATION_ERROR", apiErrorOf(t, rec).Code)
}

func TestExportSpots(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodGet, "/api/lot/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lot-1-spots.json")

	var spots []parser.SpotExport
	decodeBody(t, rec, &spots)
	require.Len(t, spots, 2)
	assert.Equal(t, "S1", spots[0].SpotID)
	assert.NotContains(t, rec.Body.String(), `"type"`)
}

func TestLoadDemo(t *testing.T) {
	h := newAPIHarness(t, backendLot())

	rec := h.do(http.MethodPost, "/api/lot/demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo-lot-1", h.state.Snapshot().Lot.LotID)
}

func TestSyncLot(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.do(http.MethodPost, "/api/lot/demo", "")

	h.backend.FailLot(1)
	rec := h.do(http.MethodPost, "/api/lot/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, dashboard.ErrMsgNotConnected, h.state.Snapshot().ErrorString())

	rec = h.do(http.MethodPost, "/api/lot/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lot-1", h.state.Snapshot().Lot.LotID)
	assert.Empty(t, h.state.Snapshot().ErrorString())
}

func TestAvailableLots(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.backend.AddUser("Ana", "ana@example.com", "secret")

	rec := h.do(http.MethodGet, "/api/lot/available", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lots []models.LotDefinition
	decodeBody(t, rec, &lots)
	require.Len(t, lots, 1)
	assert.Equal(t, "lot-1", lots[0].LotID)

	rec = h.do(http.MethodGet, "/api/lot/available", "", "Authorization", "Bearer token-ana@example.com")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/lot/available", "", "Authorization", "Bearer token-nobody")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", apiErrorOf(t, rec).Message)
}

func TestPushRemote(t *testing.T) {
	h := newAPIHarness(t, backendLot())
	h.backend.AddUser("Ana", "ana@example.com", "secret")

	rec := h.do(http.MethodPut, "/api/lot/remote", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPut, "/api/lot/remote", "", "Authorization", "Bearer token-nobody")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", apiErrorOf(t, rec).Message)

	h.do(http.MethodPost, "/api/lot/import", importBody("spots.json",
		`[{"spot_id":"N1","polygon":[{"x":0,"y":0},{"x":0.1,"y":0},{"x":0.1,"y":0.1}]}]`, ""))

	rec = h.do(http.MethodPut, "/api/lot/remote", "", "Authorization", "Bearer token-ana@example.com")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	remote := h.backend.Lot()
	require.Len(t, remote.Spots, 1)
	assert.Equal(t, "N1", remote.Spots[0].SpotID)
	assert.NotEmpty(t, h.state.Snapshot().Lot.UpdatedAt)
}
