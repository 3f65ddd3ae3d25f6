package tracking

import (
	"testing"
	"time"

	"fleet-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

var joinNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func fixtureInputs() Inputs {
	return Inputs{
		Positions: []models.PositionReport{
			{UnitID: "U1", Route: "R1", Status: "moving", Latitude: 14.6, Longitude: 121.0, LastUpdate: joinNow.Add(-45 * time.Minute)},
		},
		Units: []models.UnitRecord{
			{UnitID: "U1", HolderID: strPtr("P1"), VehicleID: "V1"},
		},
		Personnel: []models.PersonnelRecord{
			{PersonnelID: "P1", FirstName: "Juan", LastName: "Cruz"},
		},
	}
}

func TestRecompute_FullyResolvedRecord(t *testing.T) {
	res := Recompute(fixtureInputs(), joinNow, time.UTC)

	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, "U1", r.UnitID)
	assert.Equal(t, "V1", r.VehicleID)
	require.NotNil(t, r.HolderID)
	assert.Equal(t, "P1", *r.HolderID)
	assert.Equal(t, "Juan Cruz", r.DriverName)
	assert.Equal(t, NoParticular, r.Particular)
	assert.Nil(t, r.ParticularAt)
	assert.Equal(t, models.TierActive, r.Tier)
	assert.Equal(t, "Active", r.StatusLabel)
	assert.Equal(t, r.LastUpdate, r.CreatedAt)
	assert.Equal(t, []string{AllRoutes, "R1"}, res.RouteOptions)
}

func TestJoin_MissingUnitRecord(t *testing.T) {
	in := fixtureInputs()
	in.Units = nil

	res := Recompute(in, joinNow, time.UTC)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, UnknownVehicle, r.VehicleID)
	assert.Nil(t, r.HolderID)
	assert.Equal(t, UnknownDriver, r.DriverName)
	assert.Equal(t, NoParticular, r.Particular)
}

func TestJoin_BlankHolderIsUnknownDriver(t *testing.T) {
	in := fixtureInputs()
	in.Units = []models.UnitRecord{{UnitID: "U1", HolderID: strPtr("  "), VehicleID: "V1"}}

	r := Recompute(in, joinNow, time.UTC).Records[0]
	assert.Equal(t, "V1", r.VehicleID)
	assert.Nil(t, r.HolderID)
	assert.Equal(t, UnknownDriver, r.DriverName)
}

func TestJoin_HolderWithoutPersonnelRecord(t *testing.T) {
	in := fixtureInputs()
	in.Units = []models.UnitRecord{{UnitID: "U1", HolderID: strPtr("P9"), VehicleID: "V1"}}

	r := Recompute(in, joinNow, time.UTC).Records[0]
	require.NotNil(t, r.HolderID)
	assert.Equal(t, "P9", *r.HolderID)
	assert.Equal(t, NoDriverFound, r.DriverName)
	assert.NotEqual(t, UnknownDriver, r.DriverName)
}

func TestJoin_PersonnelWithBlankNames(t *testing.T) {
	in := fixtureInputs()
	in.Personnel = []models.PersonnelRecord{{PersonnelID: "P1", FirstName: " ", MiddleName: "", LastName: ""}}

	r := Recompute(in, joinNow, time.UTC).Records[0]
	assert.Equal(t, NoNameFound, r.DriverName)
}

func TestFullName_SkipsBlankParts(t *testing.T) {
	assert.Equal(t, "Maria Santos", FullName(models.PersonnelRecord{FirstName: "Maria", MiddleName: " ", LastName: "Santos"}))
	assert.Equal(t, "Jose P Rizal", FullName(models.PersonnelRecord{FirstName: "Jose", MiddleName: "P", LastName: "Rizal"}))
}

func TestJoin_LatestNoteWins(t *testing.T) {
	in := fixtureInputs()
	older := joinNow.Add(-3 * time.Hour)
	newer := joinNow.Add(-1 * time.Hour)
	in.Notes = []models.ActivityNote{
		{PersonnelID: "P1", Note: "Left depot", NotedAt: older},
		{PersonnelID: "P1", Note: "Fuel stop", NotedAt: newer},
		{PersonnelID: "P2", Note: "Other driver", NotedAt: joinNow},
	}

	r := Recompute(in, joinNow, time.UTC).Records[0]
	assert.Equal(t, "Fuel stop", r.Particular)
	require.NotNil(t, r.ParticularAt)
	assert.True(t, newer.Equal(*r.ParticularAt))
}

func TestJoin_OneRecordPerDistinctUnitInEncounterOrder(t *testing.T) {
	in := fixtureInputs()
	in.Positions = []models.PositionReport{
		{UnitID: "U2", Route: "R2", LastUpdate: joinNow.Add(-2 * time.Hour)},
		{UnitID: "U1", Route: "R1", Latitude: 1, LastUpdate: joinNow.Add(-2 * time.Hour)},
		{UnitID: "U1", Route: "R1", Latitude: 2, LastUpdate: joinNow.Add(-1 * time.Hour)},
		{UnitID: "U3", Route: "R1", LastUpdate: joinNow.Add(-30 * time.Minute)},
		{UnitID: "U4", Route: "", LastUpdate: joinNow.Add(-30 * time.Minute)},
	}

	res := Recompute(in, joinNow, time.UTC)
	require.Len(t, res.Records, 4)
	ids := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		ids = append(ids, r.UnitID)
	}
	assert.Equal(t, []string{"U2", "U1", "U3", "U4"}, ids)
	assert.Equal(t, 2.0, res.Records[1].Latitude, "newest report of a duplicated unit wins")
	assert.Equal(t, []string{AllRoutes, "R2", "R1"}, res.RouteOptions)
}

func TestJoin_UnitsWithoutPositionsAreNotShown(t *testing.T) {
	in := fixtureInputs()
	in.Units = append(in.Units, models.UnitRecord{UnitID: "U7", VehicleID: "V7"})

	res := Recompute(in, joinNow, time.UTC)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "U1", res.Records[0].UnitID)
}

func TestRecompute_DropsPositionsFromOtherDays(t *testing.T) {
	in := fixtureInputs()
	in.Positions = append(in.Positions, models.PositionReport{UnitID: "U2", Route: "R9", LastUpdate: joinNow.AddDate(0, 0, -1)})

	res := Recompute(in, joinNow, time.UTC)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{AllRoutes, "R1"}, res.RouteOptions)
}

func TestRecompute_Idempotent(t *testing.T) {
	in := fixtureInputs()
	in.Notes = []models.ActivityNote{{PersonnelID: "P1", Note: "Fuel stop", NotedAt: joinNow}}

	first := Recompute(in, joinNow, time.UTC)
	second := Recompute(in, joinNow, time.UTC)
	assert.Equal(t, first, second)
}

func TestRecompute_EmptyInputs(t *testing.T) {
	res := Recompute(Inputs{}, joinNow, time.UTC)
	assert.Empty(t, res.Records)
	assert.Equal(t, []string{AllRoutes}, res.RouteOptions)
}
