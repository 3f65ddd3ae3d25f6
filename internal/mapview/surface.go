package mapview

import (
	"fleet-tracker/internal/models"
)

// LatLng geographic position in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox smallest box containing a set of positions.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// MarkerStyle tier colouring of a marker.
type MarkerStyle struct {
	Tier  models.Tier `json:"tier"`
	Color string      `json:"color"`
}

// Popup content shown when a marker is opened.
type Popup struct {
	VehicleID   string `json:"vehicle_id"`
	Route       string `json:"route"`
	DriverName  string `json:"driver_name"`
	StatusLabel string `json:"status_label"`
	TimeAgo     string `json:"time_ago"`
}

// Marker everything a surface needs to draw one unit.
type Marker struct {
	UnitID   string      `json:"unit_id"`
	Position LatLng      `json:"position"`
	Style    MarkerStyle `json:"style"`
	Popup    Popup       `json:"popup"`
}

// MarkerHandle surface-assigned id of a drawn marker.
type MarkerHandle string

// Surface map layer the reconciler draws on. Only the reconciler calls it.
type Surface interface {
	AddMarker(m Marker, onClick func()) MarkerHandle
	RemoveMarker(h MarkerHandle)
	SetViewportBounds(b BoundingBox, padding float64)
	SetViewportCenter(center LatLng, zoom int)
}

// MarkerUpdater surfaces that can refresh a marker in place.
type MarkerUpdater interface {
	UpdateMarker(h MarkerHandle, m Marker)
}

// Readiness surfaces that may be temporarily unable to draw.
type Readiness interface {
	Ready() bool
}

// Bounds of positions; false when there are none.
func Bounds(positions []LatLng) (BoundingBox, bool) {
	if len(positions) == 0 {
		return BoundingBox{}, false
	}
	b := BoundingBox{South: positions[0].Lat, North: positions[0].Lat, West: positions[0].Lng, East: positions[0].Lng}
	for _, p := range positions[1:] {
		b.South = min(b.South, p.Lat)
		b.North = max(b.North, p.Lat)
		b.West = min(b.West, p.Lng)
		b.East = max(b.East, p.Lng)
	}
	return b, true
}
