package mapview

import (
	"errors"
	"sort"
	"strconv"
	"sync"
)

// ErrUnknownMarker click on a marker that is not drawn.
var ErrUnknownMarker = errors.New("unknown marker")

// ViewportMode how the viewport was last set.
type ViewportMode string

const (
	ViewportNone   ViewportMode = ""
	ViewportBounds ViewportMode = "bounds"
	ViewportCenter ViewportMode = "center"
)

// Viewport last viewport instruction.
type Viewport struct {
	Mode    ViewportMode `json:"mode"`
	Bounds  BoundingBox  `json:"bounds"`
	Padding float64      `json:"padding,omitempty"`
	Center  LatLng       `json:"center"`
	Zoom    int          `json:"zoom,omitempty"`
}

// MarkerState one drawn marker.
type MarkerState struct {
	ID MarkerHandle `json:"id"`
	Marker
}

// MapState copy of a MemorySurface.
type MapState struct {
	Markers  []MarkerState `json:"markers"`
	Viewport Viewport      `json:"viewport"`
}

// MemorySurface in-process map layer, read by the HTTP API. Safe for concurrent use.
type MemorySurface struct {
	mu       sync.RWMutex
	nextID   uint64
	markers  map[MarkerHandle]MarkerState
	clicks   map[MarkerHandle]func()
	viewport Viewport
	ready    bool
}

// NewMemorySurface starts ready and empty.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		markers: make(map[MarkerHandle]MarkerState),
		clicks:  make(map[MarkerHandle]func()),
		ready:   true,
	}
}

// AddMarker implements Surface.
func (s *MemorySurface) AddMarker(m Marker, onClick func()) MarkerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := MarkerHandle("m" + strconv.FormatUint(s.nextID, 10))
	s.markers[h] = MarkerState{ID: h, Marker: m}
	s.clicks[h] = onClick
	return h
}

// UpdateMarker implements MarkerUpdater.
func (s *MemorySurface) UpdateMarker(h MarkerHandle, m Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[h]; ok {
		s.markers[h] = MarkerState{ID: h, Marker: m}
	}
}

// RemoveMarker implements Surface.
func (s *MemorySurface) RemoveMarker(h MarkerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, h)
	delete(s.clicks, h)
}

// SetViewportBounds implements Surface.
func (s *MemorySurface) SetViewportBounds(b BoundingBox, padding float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = Viewport{Mode: ViewportBounds, Bounds: b, Padding: padding}
}

// SetViewportCenter implements Surface.
func (s *MemorySurface) SetViewportCenter(center LatLng, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = Viewport{Mode: ViewportCenter, Center: center, Zoom: zoom}
}

// Ready implements Readiness.
func (s *MemorySurface) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SetReady simulates the layer becoming (un)available.
func (s *MemorySurface) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Click invokes the click handler of marker h.
func (s *MemorySurface) Click(h MarkerHandle) error {
	s.mu.RLock()
	fn, ok := s.clicks[h]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknownMarker
	}
	if fn != nil {
		fn()
	}
	return nil
}

// State copy of the layer, markers ordered by unit id.
func (s *MemorySurface) State() MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	markers := make([]MarkerState, 0, len(s.markers))
	for _, m := range s.markers {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].UnitID < markers[j].UnitID })
	return MapState{Markers: markers, Viewport: s.viewport}
}

// HandleOf handle of the marker drawn for unitID.
func (s *MemorySurface) HandleOf(unitID string) (MarkerHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for h, m := range s.markers {
		if m.UnitID == unitID {
			return h, true
		}
	}
	return "", false
}
