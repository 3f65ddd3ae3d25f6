package httpapi

import (
	"net/http"
	"strings"
	"time"

	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/presenter"
	"fleet-tracker/internal/tracking"

	"go.uber.org/zap"
)

// TrackingEngine what the handlers need from tracking.Engine.
type TrackingEngine interface {
	View() *tracking.View
	Toggle(unitID string)
	ClearSelection()
}

// MapStateSource read access to an in-process map layer.
type MapStateSource interface {
	State() mapview.MapState
}

// TrackingHandler read-only projections of the live view plus the two
// selection commands.
type TrackingHandler struct {
	engine TrackingEngine
	layer  MapStateSource
	now    func() time.Time
	logger *zap.Logger
}

// NewTrackingHandler layer may be nil when the map is not served in-process.
func NewTrackingHandler(engine TrackingEngine, layer MapStateSource, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		engine: engine,
		layer:  layer,
		now:    time.Now,
		logger: logger,
	}
}

// UnitsResponse body of GET /units.
type UnitsResponse struct {
	Loading        bool                 `json:"loading"`
	Route          string               `json:"route"`
	RouteOptions   []string             `json:"route_options"`
	Counters       presenter.Counters   `json:"counters"`
	Items          []presenter.ListItem `json:"items"`
	SelectedUnitID *string              `json:"selected_unit_id"`
	FailedSources  []string             `json:"failed_sources"`
	Version        uint64               `json:"version"`
}

// GetUnits GET /tracking/api/v1/units?route=
func (h *TrackingHandler) GetUnits(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	route := strings.TrimSpace(r.URL.Query().Get("route"))
	if route == "" {
		route = tracking.AllRoutes
	}

	resp := UnitsResponse{
		Loading:       v.Loading,
		Route:         route,
		RouteOptions:  v.RouteOptions,
		Counters:      presenter.CountStatuses(v.Records),
		Items:         presenter.ListItems(v, route, h.now()),
		FailedSources: make([]string, 0, len(v.FailedSources)),
		Version:       v.Version,
	}
	if id, ok := v.Selected(); ok {
		resp.SelectedUnitID = &id
	}
	for _, s := range v.FailedSources {
		resp.FailedSources = append(resp.FailedSources, string(s))
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GetSelection GET /tracking/api/v1/selection; result is null when no selected
// unit is in the current join.
func (h *TrackingHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	d, ok := presenter.SelectedDetail(h.engine.View(), h.now())
	if !ok {
		writeJSON(w, http.StatusOK, Ok[*presenter.Detail](nil))
		return
	}
	writeJSON(w, http.StatusOK, Ok(&d))
}

type toggleRequest struct {
	UnitID string `json:"unit_id"`
}

// ToggleSelection POST /tracking/api/v1/selection/toggle {"unit_id": "..."}
func (h *TrackingHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	req.UnitID = strings.TrimSpace(req.UnitID)
	if req.UnitID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("unit_id is required"))
		return
	}

	v := h.engine.View()
	selected, has := v.Selected()
	if _, ok := v.Record(req.UnitID); !ok && !(has && selected == req.UnitID) {
		writeJSON(w, http.StatusNotFound, Fail("unit not in current view"))
		return
	}

	h.engine.Toggle(req.UnitID)
	h.logger.Debug("Selection toggled over HTTP", zap.String("unit_id", req.UnitID))
	writeJSON(w, http.StatusOK, Ok(map[string]any{"unit_id": req.UnitID}))
}

// ClearSelection POST /tracking/api/v1/selection/clear
func (h *TrackingHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearSelection()
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// GetMap GET /tracking/api/v1/map
func (h *TrackingHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	if h.layer == nil {
		writeJSON(w, http.StatusNotFound, Fail("map layer is not served by this instance"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.layer.State()))
}

// Health GET /health
func (h *TrackingHandler) Health(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":         "ok",
		"loading":        v.Loading,
		"failed_sources": len(v.FailedSources),
	}))
}
