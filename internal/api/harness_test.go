package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/macapark/dashboard/internal/dashboard"
	"github.com/macapark/dashboard/internal/guidance"
	"github.com/macapark/dashboard/internal/history"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
	"github.com/macapark/dashboard/internal/testutil"
)

type settingsRecorder struct {
	mu    sync.Mutex
	saved []models.ParkingSettings
}

func (r *settingsRecorder) SaveParkingSettings(s models.ParkingSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return nil
}

func (r *settingsRecorder) last() (models.ParkingSettings, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return models.ParkingSettings{}, false
	}
	return r.saved[len(r.saved)-1], true
}

type fakeHistory struct {
	events []history.Event
	err    error
	limit  int
}

func (f *fakeHistory) SpotHistory(ctx context.Context, spotID string, limit int) ([]history.Event, error) {
	f.limit = limit
	var out []history.Event
	for _, e := range f.events {
		if e.SpotID == spotID {
			out = append(out, e)
		}
	}
	return out, f.err
}

type apiHarness struct {
	e        *echo.Echo
	state    *store.Store
	backend  *testutil.ParkingBackend
	provider *dashboard.Provider
	files    *testutil.MockStorage
	settings *settingsRecorder
	history  *fakeHistory
	handlers *Handlers
}

// newAPIHarness serves the full route table against a fake parking
// backend holding lot. The provider is started with the REST URL only.
func newAPIHarness(t *testing.T, lot *models.LotDefinition) *apiHarness {
	t.Helper()
	h := &apiHarness{
		e:        echo.New(),
		state:    store.New(),
		backend:  testutil.NewParkingBackend(t, lot),
		files:    testutil.NewMockStorage(),
		settings: &settingsRecorder{},
		history:  &fakeHistory{},
	}
	h.provider = dashboard.New(h.state, dashboard.Options{})
	t.Cleanup(h.provider.Stop)
	h.provider.Start(context.Background(), models.ParkingSettings{RestBaseURL: h.backend.RESTURL()})

	h.handlers = NewHandlers(&Dependencies{
		State:    h.state,
		Backend:  h.provider,
		Files:    h.files,
		Settings: h.settings,
		History:  h.history,
		Guidance: guidance.Options{},
		Version:  "test",
	})
	t.Cleanup(h.handlers.Hub.Close)
	SetupMiddleware(h.e, MiddlewareConfig{})
	RegisterRoutes(h.e, h.handlers)
	return h
}

func (h *apiHarness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func apiErrorOf(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	decodeBody(t, rec, &e)
	return e
}

func square(x, y float64) []models.Point {
	return []models.Point{{X: x, Y: y}, {X: x + 0.1, Y: y}, {X: x + 0.1, Y: y + 0.1}, {X: x, Y: y + 0.1}}
}

func backendLot() *models.LotDefinition {
	return &models.LotDefinition{
		LotID: "lot-1",
		Name:  "North",
		Spots: []models.SpotDefinition{
			{SpotID: "S1", Polygon: square(0.1, 0.1)},
			{SpotID: "S2", Polygon: square(0.5, 0.1), Type: models.SpotTypeEV},
		},
		Entrances: []models.Entrance{{ID: "gate", Name: "Gate", X: 0, Y: 0}},
	}
}
