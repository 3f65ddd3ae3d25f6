package tracking

import (
	"sync"

	"fleet-tracker/internal/models"
)

type viewportCall struct {
	unitIDs      []string
	selected     string
	hasSelection bool
}

// recordingRenderer captures every call made by the pipeline.
type recordingRenderer struct {
	mu        sync.Mutex
	markers   [][]string
	viewports []viewportCall
	teardowns int
}

func unitIDs(records []models.MergedTrackingRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UnitID)
	}
	return ids
}

func (r *recordingRenderer) SyncMarkers(records []models.MergedTrackingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append(r.markers, unitIDs(records))
}

func (r *recordingRenderer) SyncViewport(records []models.MergedTrackingRecord, selected string, has bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewports = append(r.viewports, viewportCall{unitIDs: unitIDs(records), selected: selected, hasSelection: has})
}

func (r *recordingRenderer) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardowns++
}

func (r *recordingRenderer) lastViewport() (viewportCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.viewports) == 0 {
		return viewportCall{}, false
	}
	return r.viewports[len(r.viewports)-1], true
}

func (r *recordingRenderer) markerCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

func (r *recordingRenderer) teardownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teardowns
}
