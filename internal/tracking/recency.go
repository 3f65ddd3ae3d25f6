package tracking

import (
	"time"

	"fleet-tracker/internal/models"
)

// SameLocalDay reports whether a and b fall on the same calendar date in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// FilterToday keeps the reports whose last update is on now's calendar date in loc.
// A zero last-update instant never matches. The input slice is not modified.
func FilterToday(reports []models.PositionReport, now time.Time, loc *time.Location) []models.PositionReport {
	out := make([]models.PositionReport, 0, len(reports))
	for _, r := range reports {
		if r.LastUpdate.IsZero() {
			continue
		}
		if SameLocalDay(r.LastUpdate, now, loc) {
			out = append(out, r)
		}
	}
	return out
}
