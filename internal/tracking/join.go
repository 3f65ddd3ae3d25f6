package tracking

import (
	"strings"
	"time"

	"fleet-tracker/internal/models"
)

// Placeholder values of unresolved joins. "Unknown Driver" and "No Driver Found"
// are different cases and must stay distinct.
const (
	UnknownVehicle = "Unknown Vehicle"
	UnknownDriver  = "Unknown Driver"
	NoDriverFound  = "No Driver Found"
	NoNameFound    = "No Name Found"
	NoParticular   = "No Particular"
	AllRoutes      = "All Routes"
)

// Inputs the four current source snapshots. Unpopulated sources are nil.
type Inputs struct {
	Positions []models.PositionReport
	Units     []models.UnitRecord
	Personnel []models.PersonnelRecord
	Notes     []models.ActivityNote
}

// Result output of one recompute.
type Result struct {
	Records      []models.MergedTrackingRecord
	RouteOptions []string
}

// Recompute filters positions to now's local date and joins them. It is a pure
// function of its arguments.
func Recompute(in Inputs, now time.Time, loc *time.Location) Result {
	today := FilterToday(in.Positions, now, loc)
	return Result{
		Records:      Join(today, in.Units, in.Personnel, in.Notes),
		RouteOptions: RouteOptions(today),
	}
}

// Join builds one record per distinct unit id of positions, in encounter order.
// Duplicate unit ids keep the report with the newest last update (first on ties).
func Join(positions []models.PositionReport, units []models.UnitRecord, personnel []models.PersonnelRecord, notes []models.ActivityNote) []models.MergedTrackingRecord {
	unitByID := make(map[string]models.UnitRecord, len(units))
	for _, u := range units {
		unitByID[u.UnitID] = u
	}
	personByID := make(map[string]models.PersonnelRecord, len(personnel))
	for _, p := range personnel {
		personByID[p.PersonnelID] = p
	}
	latestNote := latestNotes(notes)

	order := make([]string, 0, len(positions))
	chosen := make(map[string]models.PositionReport, len(positions))
	for _, p := range positions {
		prev, seen := chosen[p.UnitID]
		if !seen {
			order = append(order, p.UnitID)
			chosen[p.UnitID] = p
			continue
		}
		if p.LastUpdate.After(prev.LastUpdate) {
			chosen[p.UnitID] = p
		}
	}

	records := make([]models.MergedTrackingRecord, 0, len(order))
	for _, unitID := range order {
		records = append(records, mergeOne(chosen[unitID], unitByID, personByID, latestNote))
	}
	return records
}

func mergeOne(p models.PositionReport, unitByID map[string]models.UnitRecord, personByID map[string]models.PersonnelRecord, latestNote map[string]models.ActivityNote) models.MergedTrackingRecord {
	rec := models.MergedTrackingRecord{
		UnitID:     p.UnitID,
		VehicleID:  UnknownVehicle,
		Route:      p.Route,
		Status:     p.Status,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		LastUpdate: p.LastUpdate,
		CreatedAt:  p.CreatedAt,
		DriverName: UnknownDriver,
		Particular: NoParticular,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.LastUpdate
	}
	rec.Tier, rec.StatusLabel = MarkerStatus(p.Status)

	unit, ok := unitByID[p.UnitID]
	if !ok {
		return rec
	}
	rec.VehicleID = unit.VehicleID
	if rec.VehicleID == "" {
		rec.VehicleID = UnknownVehicle
	}

	holder := holderOf(unit)
	if holder == "" {
		return rec
	}
	rec.HolderID = &holder

	if person, ok := personByID[holder]; ok {
		rec.DriverName = FullName(person)
	} else {
		rec.DriverName = NoDriverFound
	}

	if note, ok := latestNote[holder]; ok {
		rec.Particular = note.Note
		at := note.NotedAt
		rec.ParticularAt = &at
	}
	return rec
}

func holderOf(u models.UnitRecord) string {
	if u.HolderID == nil {
		return ""
	}
	return strings.TrimSpace(*u.HolderID)
}

// FullName joins the non-blank name parts with single spaces.
func FullName(p models.PersonnelRecord) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s := strings.TrimSpace(part); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return NoNameFound
	}
	return strings.Join(parts, " ")
}

// latestNotes newest note per personnel id; ties keep the first seen.
func latestNotes(notes []models.ActivityNote) map[string]models.ActivityNote {
	latest := make(map[string]models.ActivityNote, len(notes))
	for _, n := range notes {
		prev, ok := latest[n.PersonnelID]
		if !ok || n.NotedAt.After(prev.NotedAt) {
			latest[n.PersonnelID] = n
		}
	}
	return latest
}

// RouteOptions "All Routes" followed by the distinct non-blank routes in encounter order.
func RouteOptions(positions []models.PositionReport) []string {
	options := []string{AllRoutes}
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if strings.TrimSpace(p.Route) == "" {
			continue
		}
		if _, ok := seen[p.Route]; ok {
			continue
		}
		seen[p.Route] = struct{}{}
		options = append(options, p.Route)
	}
	return options
}
