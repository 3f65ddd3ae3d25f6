package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownSource source name is not one of the four tracking feeds.
var ErrUnknownSource = errors.New("unknown tracking source")

// Source one of the four live feeds of the tracking view.
type Source string

const (
	SourcePositions Source = "positions"
	SourceUnits     Source = "units"
	SourcePersonnel Source = "personnel"
	SourceNotes     Source = "activity_notes"
)

// AllSources in subscription order.
var AllSources = []Source{SourcePositions, SourceUnits, SourcePersonnel, SourceNotes}

// ParseSource maps a configured name onto a Source.
func ParseSource(name string) (Source, error) {
	for _, s := range AllSources {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// PositionReport last known position of one unit. Replaced wholesale on every update.
type PositionReport struct {
	UnitID     string    `json:"unit_id"`
	Route      string    `json:"route"`
	Status     string    `json:"status"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	LastUpdate time.Time `json:"last_update"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnitRecord registry entry of a trackable unit.
type UnitRecord struct {
	UnitID    string  `json:"unit_id"`
	HolderID  *string `json:"holder_id"`
	VehicleID string  `json:"vehicle_id"`
	Status    string  `json:"status"`
}

// PersonnelRecord registry entry of a driver.
type PersonnelRecord struct {
	PersonnelID string `json:"personnel_id"`
	FirstName   string `json:"first_name"`
	MiddleName  string `json:"middle_name"`
	LastName    string `json:"last_name"`
}

// ActivityNote free-text note about a driver; many per personnel id.
type ActivityNote struct {
	PersonnelID string    `json:"personnel_id"`
	Note        string    `json:"note"`
	NotedAt     time.Time `json:"noted_at"`
}

// Tier coarse status classification used for marker styling and counters.
type Tier string

const (
	TierActive  Tier = "active"
	TierIdle    Tier = "idle"
	TierStopped Tier = "stopped"
	TierUnknown Tier = "unknown"
)

// MergedTrackingRecord per-unit join of position, unit and personnel data.
// Built fresh on every recompute and never modified afterwards.
type MergedTrackingRecord struct {
	UnitID       string     `json:"unit_id"`
	VehicleID    string     `json:"vehicle_id"`
	HolderID     *string    `json:"holder_id"`
	Route        string     `json:"route"`
	Status       string     `json:"status"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	LastUpdate   time.Time  `json:"last_update"`
	CreatedAt    time.Time  `json:"created_at"`
	DriverName   string     `json:"driver_name"`
	Particular   string     `json:"particular"`
	ParticularAt *time.Time `json:"particular_at,omitempty"`
	Tier         Tier       `json:"tier"`
	StatusLabel  string     `json:"status_label"`
}

// Snapshot full replacement set of one source. Only the slice matching Source is used.
type Snapshot struct {
	Source    Source
	Positions []PositionReport
	Units     []UnitRecord
	Personnel []PersonnelRecord
	Notes     []ActivityNote
}

// EmptySnapshot the degraded value of a failed or not yet delivered source.
func EmptySnapshot(source Source) Snapshot {
	return Snapshot{Source: source}
}

// Len number of records carried for Source.
func (s Snapshot) Len() int {
	switch s.Source {
	case SourcePositions:
		return len(s.Positions)
	case SourceUnits:
		return len(s.Units)
	case SourcePersonnel:
		return len(s.Personnel)
	case SourceNotes:
		return len(s.Notes)
	default:
		return 0
	}
}

// Records the slice matching Source, for encoding.
func (s Snapshot) Records() interface{} {
	switch s.Source {
	case SourcePositions:
		return nonNil(s.Positions)
	case SourceUnits:
		return nonNil(s.Units)
	case SourcePersonnel:
		return nonNil(s.Personnel)
	case SourceNotes:
		return nonNil(s.Notes)
	default:
		return []struct{}{}
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
