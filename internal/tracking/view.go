package tracking

import (
	"time"

	"fleet-tracker/internal/models"
)

// View immutable result of one engine turn. Readers must not modify the slices.
type View struct {
	Version        uint64                        `json:"version"`
	Loading        bool                          `json:"loading"`
	Records        []models.MergedTrackingRecord `json:"records"`
	RouteOptions   []string                      `json:"route_options"`
	SelectedUnitID string                        `json:"selected_unit_id,omitempty"`
	HasSelection   bool                          `json:"has_selection"`
	FailedSources  []models.Source               `json:"failed_sources,omitempty"`
	ComputedAt     time.Time                     `json:"computed_at"`
}

// Selected implements SelectionReader.
func (v *View) Selected() (string, bool) {
	return v.SelectedUnitID, v.HasSelection
}

// Record finds unitID in the current join.
func (v *View) Record(unitID string) (models.MergedTrackingRecord, bool) {
	for _, r := range v.Records {
		if r.UnitID == unitID {
			return r, true
		}
	}
	return models.MergedTrackingRecord{}, false
}

// SelectedRecord the focused unit, only if it is still part of the join.
func (v *View) SelectedRecord() (models.MergedTrackingRecord, bool) {
	if !v.HasSelection {
		return models.MergedTrackingRecord{}, false
	}
	return v.Record(v.SelectedUnitID)
}
