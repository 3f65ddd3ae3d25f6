package presenter

import (
	"fmt"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/tracking"
)

// TimeAgo relative label of then as seen at now. Floor division throughout;
// future instants read as "Just now".
func TimeAgo(now, then time.Time) string {
	elapsed := now.Sub(then)
	switch {
	case elapsed < time.Minute:
		return "Just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int64(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int64(elapsed/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int64(elapsed/(24*time.Hour)))
	}
}

// Counter one aggregate with its bar width in percent.
type Counter struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	Width   string  `json:"width"`
}

// Counters aggregate counts over the current join. Idle includes "inactive".
type Counters struct {
	Active Counter `json:"active"`
	Idle   Counter `json:"idle"`
	Total  Counter `json:"total"`
}

// CountStatuses computes Counters with tracking.CounterTier.
func CountStatuses(records []models.MergedTrackingRecord) Counters {
	var active, idle int
	for _, r := range records {
		switch tracking.CounterTier(r.Status) {
		case models.TierActive:
			active++
		case models.TierIdle:
			idle++
		}
	}
	total := len(records)
	return Counters{
		Active: newCounter(active, total),
		Idle:   newCounter(idle, total),
		Total:  newCounter(total, total),
	}
}

func newCounter(count, total int) Counter {
	c := Counter{Count: count, Percent: BarPercent(count, total)}
	c.Width = BarWidth(c)
	return c
}

// BarPercent count/total*100, or 0 when total is 0.
func BarPercent(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// BarWidth CSS width of a counter bar, e.g. "62.5%".
func BarWidth(c Counter) string {
	return fmt.Sprintf("%g%%", c.Percent)
}

// ListItem one sidebar row.
type ListItem struct {
	UnitID      string      `json:"unit_id"`
	VehicleID   string      `json:"vehicle_id"`
	DriverName  string      `json:"driver_name"`
	Route       string      `json:"route"`
	Tier        models.Tier `json:"tier"`
	StatusLabel string      `json:"status_label"`
	TimeAgo     string      `json:"time_ago"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Selected    bool        `json:"selected"`
}

// ListItems rows of the sidebar, optionally narrowed to one route.
// route "" or tracking.AllRoutes means every route.
func ListItems(v *tracking.View, route string, now time.Time) []ListItem {
	selected, has := v.Selected()
	items := make([]ListItem, 0, len(v.Records))
	for _, r := range v.Records {
		if route != "" && route != tracking.AllRoutes && r.Route != route {
			continue
		}
		items = append(items, ListItem{
			UnitID:      r.UnitID,
			VehicleID:   r.VehicleID,
			DriverName:  r.DriverName,
			Route:       r.Route,
			Tier:        r.Tier,
			StatusLabel: r.StatusLabel,
			TimeAgo:     TimeAgo(now, r.LastUpdate),
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Selected:    has && selected == r.UnitID,
		})
	}
	return items
}

// Detail the detail-modal projection of the selected unit.
type Detail struct {
	UnitID       string      `json:"unit_id"`
	VehicleID    string      `json:"vehicle_id"`
	HolderID     *string     `json:"holder_id"`
	DriverName   string      `json:"driver_name"`
	Particular   string      `json:"particular"`
	ParticularAt *time.Time  `json:"particular_at,omitempty"`
	Route        string      `json:"route"`
	Status       string      `json:"status"`
	Tier         models.Tier `json:"tier"`
	StatusLabel  string      `json:"status_label"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	LastUpdate   time.Time   `json:"last_update"`
	CreatedAt    time.Time   `json:"created_at"`
	TimeAgo      string      `json:"time_ago"`
}

// SelectedDetail detail of the selected unit; false when nothing is selected
// or the selected unit is not part of the current join.
func SelectedDetail(v *tracking.View, now time.Time) (Detail, bool) {
	r, ok := v.SelectedRecord()
	if !ok {
		return Detail{}, false
	}
	return DetailOf(r, now), true
}

// DetailOf formats one record.
func DetailOf(r models.MergedTrackingRecord, now time.Time) Detail {
	return Detail{
		UnitID:       r.UnitID,
		VehicleID:    r.VehicleID,
		HolderID:     r.HolderID,
		DriverName:   r.DriverName,
		Particular:   r.Particular,
		ParticularAt: r.ParticularAt,
		Route:        r.Route,
		Status:       r.Status,
		Tier:         r.Tier,
		StatusLabel:  r.StatusLabel,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		LastUpdate:   r.LastUpdate,
		CreatedAt:    r.CreatedAt,
		TimeAgo:      TimeAgo(now, r.LastUpdate),
	}
}
