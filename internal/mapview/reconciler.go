package mapview

import (
	"io"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/presenter"

	"go.uber.org/zap"
)

// Defaults of Options.
const (
	DefaultFitPadding = 0.1
	DefaultFocusZoom  = 16
)

// DefaultColors marker colour per tier.
var DefaultColors = map[models.Tier]string{
	models.TierActive:  "#16a34a",
	models.TierIdle:    "#f59e0b",
	models.TierStopped: "#dc2626",
	models.TierUnknown: "#6b7280",
}

// Options settings of a Reconciler.
type Options struct {
	FitPadding float64
	FocusZoom  int
	Colors     map[models.Tier]string
	Now        func() time.Time
}

type drawn struct {
	handle MarkerHandle
	marker Marker
}

// Reconciler keeps a Surface in step with the current record set. It owns the
// surface exclusively and diffs markers by unit id. Not safe for concurrent
// use; the tracking engine calls it from one goroutine.
type Reconciler struct {
	surface  Surface
	onSelect func(unitID string)
	opts     Options
	logger   *zap.Logger

	markers map[string]drawn
}

// NewReconciler surface may be nil until Attach. onSelect receives marker clicks.
func NewReconciler(surface Surface, onSelect func(unitID string), opts Options, logger *zap.Logger) *Reconciler {
	if opts.FitPadding <= 0 {
		opts.FitPadding = DefaultFitPadding
	}
	if opts.FocusZoom <= 0 {
		opts.FocusZoom = DefaultFocusZoom
	}
	colors := make(map[models.Tier]string, len(DefaultColors))
	for tier, c := range DefaultColors {
		colors[tier] = c
	}
	for tier, c := range opts.Colors {
		if c != "" {
			colors[tier] = c
		}
	}
	opts.Colors = colors
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if onSelect == nil {
		onSelect = func(string) {}
	}
	return &Reconciler{
		surface:  surface,
		onSelect: onSelect,
		opts:     opts,
		logger:   logger,
		markers:  make(map[string]drawn),
	}
}

// SetOnSelect replaces the click callback. Call before markers are drawn.
func (r *Reconciler) SetOnSelect(onSelect func(unitID string)) {
	if onSelect != nil {
		r.onSelect = onSelect
	}
}

// Attach switches to a new surface, releasing the previous one. The caller
// should render afterwards so the new surface receives every marker.
func (r *Reconciler) Attach(surface Surface) {
	r.Teardown()
	r.surface = surface
}

// Markers number of markers currently drawn.
func (r *Reconciler) Markers() int {
	return len(r.markers)
}

func (r *Reconciler) ready() bool {
	if r.surface == nil {
		return false
	}
	if rd, ok := r.surface.(Readiness); ok {
		return rd.Ready()
	}
	return true
}

// SyncMarkers removes markers of units no longer present and creates or
// refreshes one marker per record. Unchanged markers are left alone.
func (r *Reconciler) SyncMarkers(records []models.MergedTrackingRecord) {
	if !r.ready() {
		r.logger.Debug("Map surface not ready, skipping marker sync", zap.Int("records", len(records)))
		return
	}

	now := r.opts.Now()
	want := make(map[string]Marker, len(records))
	for _, rec := range records {
		want[rec.UnitID] = r.markerOf(rec, now)
	}

	for unitID, d := range r.markers {
		if _, ok := want[unitID]; !ok {
			r.surface.RemoveMarker(d.handle)
			delete(r.markers, unitID)
		}
	}

	updater, canUpdate := r.surface.(MarkerUpdater)
	for _, rec := range records {
		m := want[rec.UnitID]
		d, ok := r.markers[rec.UnitID]
		switch {
		case ok && d.marker == m:
			continue
		case ok && canUpdate:
			updater.UpdateMarker(d.handle, m)
			r.markers[rec.UnitID] = drawn{handle: d.handle, marker: m}
		default:
			if ok {
				r.surface.RemoveMarker(d.handle)
			}
			unitID := rec.UnitID
			h := r.surface.AddMarker(m, func() { r.onSelect(unitID) })
			r.markers[unitID] = drawn{handle: h, marker: m}
		}
	}
}

// SyncViewport centres on the selected record, or fits every record when
// nothing is selected or the selected unit is absent. No records, no change.
func (r *Reconciler) SyncViewport(records []models.MergedTrackingRecord, selectedUnitID string, hasSelection bool) {
	if !r.ready() {
		return
	}
	if hasSelection {
		for _, rec := range records {
			if rec.UnitID == selectedUnitID {
				r.surface.SetViewportCenter(LatLng{Lat: rec.Latitude, Lng: rec.Longitude}, r.opts.FocusZoom)
				return
			}
		}
	}

	positions := make([]LatLng, 0, len(records))
	for _, rec := range records {
		positions = append(positions, LatLng{Lat: rec.Latitude, Lng: rec.Longitude})
	}
	if b, ok := Bounds(positions); ok {
		r.surface.SetViewportBounds(b, r.opts.FitPadding)
	}
}

// Teardown removes every marker and closes the surface if it is an io.Closer.
// Removal is best-effort: a surface that is not ready keeps what it drew, and
// MQTTSurface clears such leftovers when the next surface on its prefix starts.
func (r *Reconciler) Teardown() {
	if r.surface == nil {
		return
	}
	if r.ready() {
		for unitID, d := range r.markers {
			r.surface.RemoveMarker(d.handle)
			delete(r.markers, unitID)
		}
	}
	r.markers = make(map[string]drawn)
	if c, ok := r.surface.(io.Closer); ok {
		if err := c.Close(); err != nil {
			r.logger.Warn("Failed to close map surface", zap.Error(err))
		}
	}
	r.surface = nil
}

func (r *Reconciler) markerOf(rec models.MergedTrackingRecord, now time.Time) Marker {
	return Marker{
		UnitID:   rec.UnitID,
		Position: LatLng{Lat: rec.Latitude, Lng: rec.Longitude},
		Style:    MarkerStyle{Tier: rec.Tier, Color: r.opts.Colors[rec.Tier]},
		Popup: Popup{
			VehicleID:   rec.VehicleID,
			Route:       rec.Route,
			DriverName:  rec.DriverName,
			StatusLabel: rec.StatusLabel,
			TimeAgo:     presenter.TimeAgo(now, rec.LastUpdate),
		},
	}
}
