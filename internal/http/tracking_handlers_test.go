package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/models"
	"fleet-tracker/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type fakeEngine struct {
	mu      sync.Mutex
	view    *tracking.View
	toggled []string
	cleared int
}

func (f *fakeEngine) View() *tracking.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeEngine) Toggle(unitID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, unitID)
}

func (f *fakeEngine) ClearSelection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func newFakeEngine() *fakeEngine {
	holder := "P1"
	return &fakeEngine{view: &tracking.View{
		Version: 4,
		Records: []models.MergedTrackingRecord{
			{UnitID: "U1", VehicleID: "V1", HolderID: &holder, DriverName: "Juan Cruz", Route: "R1",
				Status: "moving", Tier: models.TierActive, StatusLabel: "Active", LastUpdate: now.Add(-45 * time.Minute)},
			{UnitID: "U2", VehicleID: "V2", DriverName: tracking.UnknownDriver, Route: "R2",
				Status: "inactive", Tier: models.TierUnknown, StatusLabel: "Unknown", LastUpdate: now.Add(-25 * time.Hour)},
		},
		RouteOptions:  []string{tracking.AllRoutes, "R1", "R2"},
		FailedSources: []models.Source{models.SourceNotes},
	}}
}

func newTestRouter(engine TrackingEngine, layer MapStateSource) *Router {
	h := NewTrackingHandler(engine, layer, zap.NewNop())
	h.now = func() time.Time { return now }
	r := NewRouter(zap.NewNop())
	r.RegisterTrackingRoutes(h)
	r.RegisterHealthRoute(h)
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestGetUnits_WrapsResultAndFiltersRoute(t *testing.T) {
	r := newTestRouter(newFakeEngine(), nil)

	w, body := do(t, r, http.MethodGet, "/tracking/api/v1/units", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(ResultSuccess), body["code"])
	result := body["result"].(map[string]any)
	assert.Equal(t, tracking.AllRoutes, result["route"])
	assert.Len(t, result["items"], 2)
	assert.Nil(t, result["selected_unit_id"])
	assert.Equal(t, []any{"activity_notes"}, result["failed_sources"])

	counters := result["counters"].(map[string]any)
	assert.Equal(t, float64(1), counters["active"].(map[string]any)["count"])
	assert.Equal(t, float64(1), counters["idle"].(map[string]any)["count"], "inactive counts as idle")
	assert.Equal(t, float64(50), counters["idle"].(map[string]any)["percent"])

	w, body = do(t, r, http.MethodGet, "/tracking/api/v1/units?route=R2", "")
	require.Equal(t, http.StatusOK, w.Code)
	items := body["result"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "U2", item["unit_id"])
	assert.Equal(t, "1d ago", item["time_ago"])
}

func TestGetSelection(t *testing.T) {
	engine := newFakeEngine()
	r := newTestRouter(engine, nil)

	w, body := do(t, r, http.MethodGet, "/tracking/api/v1/selection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["result"])

	engine.view.SelectedUnitID, engine.view.HasSelection = "U1", true
	_, body = do(t, r, http.MethodGet, "/tracking/api/v1/selection", "")
	detail := body["result"].(map[string]any)
	assert.Equal(t, "Juan Cruz", detail["driver_name"])
	assert.Equal(t, "P1", detail["holder_id"])
	assert.Equal(t, "45m ago", detail["time_ago"])

	engine.view.SelectedUnitID = "U9"
	_, body = do(t, r, http.MethodGet, "/tracking/api/v1/selection", "")
	assert.Nil(t, body["result"], "stale selection has no detail")
}

func TestToggleSelection(t *testing.T) {
	engine := newFakeEngine()
	r := newTestRouter(engine, nil)

	w, _ := do(t, r, http.MethodPost, "/tracking/api/v1/selection/toggle", `{"unit_id":"U1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"U1"}, engine.toggled)

	w, body := do(t, r, http.MethodPost, "/tracking/api/v1/selection/toggle", `{"unit_id":"U9"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(ResultError), body["code"])

	w, _ = do(t, r, http.MethodPost, "/tracking/api/v1/selection/toggle", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/tracking/api/v1/selection/toggle", `{bad`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/tracking/api/v1/selection/toggle", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Len(t, engine.toggled, 1)
}

func TestToggleSelection_StaleSelectionCanBeDeselected(t *testing.T) {
	engine := newFakeEngine()
	engine.view.SelectedUnitID, engine.view.HasSelection = "U9", true
	r := newTestRouter(engine, nil)

	w, _ := do(t, r, http.MethodPost, "/tracking/api/v1/selection/toggle", `{"unit_id":"U9"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClearSelection(t *testing.T) {
	engine := newFakeEngine()
	r := newTestRouter(engine, nil)

	w, _ := do(t, r, http.MethodPost, "/tracking/api/v1/selection/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, engine.cleared)
}

func TestGetMap(t *testing.T) {
	w, _ := do(t, newTestRouter(newFakeEngine(), nil), http.MethodGet, "/tracking/api/v1/map", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	layer := mapview.NewMemorySurface()
	layer.AddMarker(mapview.Marker{UnitID: "U1", Position: mapview.LatLng{Lat: 14.5, Lng: 121}}, nil)
	layer.SetViewportBounds(mapview.BoundingBox{South: 14.5, West: 121, North: 14.5, East: 121}, 0.1)

	w, body := do(t, newTestRouter(newFakeEngine(), layer), http.MethodGet, "/tracking/api/v1/map", "")
	require.Equal(t, http.StatusOK, w.Code)
	result := body["result"].(map[string]any)
	markers := result["markers"].([]any)
	require.Len(t, markers, 1)
	assert.Equal(t, "U1", markers[0].(map[string]any)["unit_id"])
	assert.Equal(t, "bounds", result["viewport"].(map[string]any)["mode"])
}

func TestHealth(t *testing.T) {
	w, body := do(t, newTestRouter(newFakeEngine(), nil), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["result"].(map[string]any)["status"])
}
