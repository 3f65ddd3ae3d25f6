package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DecodeSnapshot parses a JSON array of records for source.
// Malformed coordinates become 0 and malformed instants the zero time; only a
// document that is not an array of objects is an error. Timestamps without a
// zone are wall-clock times in loc (nil means time.Local).
func DecodeSnapshot(source Source, data []byte, loc *time.Location) (Snapshot, error) {
	if loc == nil {
		loc = time.Local
	}
	snap := EmptySnapshot(source)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return snap, nil
	}

	switch source {
	case SourcePositions:
		var raw []wirePosition
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return snap, fmt.Errorf("failed to decode %s snapshot: %w", source, err)
		}
		snap.Positions = make([]PositionReport, 0, len(raw))
		for _, r := range raw {
			snap.Positions = append(snap.Positions, r.toModel(loc))
		}
	case SourceUnits:
		var raw []wireUnit
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return snap, fmt.Errorf("failed to decode %s snapshot: %w", source, err)
		}
		snap.Units = make([]UnitRecord, 0, len(raw))
		for _, r := range raw {
			snap.Units = append(snap.Units, r.toModel())
		}
	case SourcePersonnel:
		var raw []wirePersonnel
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return snap, fmt.Errorf("failed to decode %s snapshot: %w", source, err)
		}
		snap.Personnel = make([]PersonnelRecord, 0, len(raw))
		for _, r := range raw {
			snap.Personnel = append(snap.Personnel, PersonnelRecord{
				PersonnelID: string(r.PersonnelID),
				FirstName:   string(r.FirstName),
				MiddleName:  string(r.MiddleName),
				LastName:    string(r.LastName),
			})
		}
	case SourceNotes:
		var raw []wireNote
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return snap, fmt.Errorf("failed to decode %s snapshot: %w", source, err)
		}
		snap.Notes = make([]ActivityNote, 0, len(raw))
		for _, r := range raw {
			snap.Notes = append(snap.Notes, ActivityNote{
				PersonnelID: string(r.PersonnelID),
				Note:        string(r.Note),
				NotedAt:     r.NotedAt.in(loc),
			})
		}
	default:
		return snap, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return snap, nil
}

// EncodeSnapshot JSON array form accepted by DecodeSnapshot.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	if _, err := ParseSource(string(snap.Source)); err != nil {
		return nil, err
	}
	return json.Marshal(snap.Records())
}

type wirePosition struct {
	UnitID     flexString `json:"unit_id"`
	Route      flexString `json:"route"`
	Status     flexString `json:"status"`
	Latitude   flexFloat  `json:"latitude"`
	Longitude  flexFloat  `json:"longitude"`
	LastUpdate flexTime   `json:"last_update"`
	CreatedAt  flexTime   `json:"created_at"`
}

func (w wirePosition) toModel(loc *time.Location) PositionReport {
	p := PositionReport{
		UnitID:     string(w.UnitID),
		Route:      string(w.Route),
		Status:     string(w.Status),
		Latitude:   float64(w.Latitude),
		Longitude:  float64(w.Longitude),
		LastUpdate: w.LastUpdate.in(loc),
		CreatedAt:  w.CreatedAt.in(loc),
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.LastUpdate
	}
	return p
}

type wireUnit struct {
	UnitID    flexString  `json:"unit_id"`
	HolderID  *flexString `json:"holder_id"`
	VehicleID flexString  `json:"vehicle_id"`
	Status    flexString  `json:"status"`
}

func (w wireUnit) toModel() UnitRecord {
	u := UnitRecord{
		UnitID:    string(w.UnitID),
		VehicleID: string(w.VehicleID),
		Status:    string(w.Status),
	}
	if w.HolderID != nil {
		if holder := strings.TrimSpace(string(*w.HolderID)); holder != "" {
			u.HolderID = &holder
		}
	}
	return u
}

type wirePersonnel struct {
	PersonnelID flexString `json:"personnel_id"`
	FirstName   flexString `json:"first_name"`
	MiddleName  flexString `json:"middle_name"`
	LastName    flexString `json:"last_name"`
}

type wireNote struct {
	PersonnelID flexString `json:"personnel_id"`
	Note        flexString `json:"note"`
	NotedAt     flexTime   `json:"noted_at"`
}

// flexString accepts strings and numbers; anything else is "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*s = flexString(num.String())
		return nil
	}
	*s = ""
	return nil
}

// flexFloat accepts numbers and numeric strings; anything else, NaN and ±Inf are 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// zonelessLayouts carry no offset and are read as wall-clock time.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339 strings, zoneless date-times and Unix seconds or
// milliseconds.
type flexTime struct {
	t    time.Time
	wall bool
}

// in resolves a zoneless value as a wall-clock time in loc.
func (f flexTime) in(loc *time.Location) time.Time {
	if !f.wall {
		return f.t
	}
	w := f.t
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	*f = flexTime{}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		str = strings.TrimSpace(str)
		if parsed, err := time.Parse(time.RFC3339Nano, str); err == nil {
			f.t = parsed
			return nil
		}
		for _, layout := range zonelessLayouts {
			if parsed, err := time.Parse(layout, str); err == nil {
				f.t, f.wall = parsed, true
				return nil
			}
		}
		if n, err := strconv.ParseFloat(str, 64); err == nil {
			f.t = fromEpoch(n)
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.t = fromEpoch(n)
	}
	return nil
}

// fromEpoch values above 1e12 are taken as milliseconds.
func fromEpoch(n float64) time.Time {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n))
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9))
}
