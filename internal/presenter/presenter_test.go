package presenter

import (
	"testing"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{-5 * time.Minute, "Just now"},
		{time.Minute, "1m ago"},
		{45 * time.Minute, "45m ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
		{time.Hour, "1h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{25 * time.Hour, "1d ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeAgo(now, now.Add(-tt.ago)), "ago=%s", tt.ago)
	}
}

func TestCountStatuses(t *testing.T) {
	records := []models.MergedTrackingRecord{
		{UnitID: "U1", Status: "moving"},
		{UnitID: "U2", Status: "active"},
		{UnitID: "U3", Status: "idle"},
		{UnitID: "U4", Status: "inactive"},
		{UnitID: "U5", Status: "stop"},
	}

	c := CountStatuses(records)
	assert.Equal(t, 2, c.Active.Count)
	assert.Equal(t, 40.0, c.Active.Percent)
	assert.Equal(t, 2, c.Idle.Count, "inactive counts as idle")
	assert.Equal(t, 5, c.Total.Count)
	assert.Equal(t, 100.0, c.Total.Percent)
	assert.Equal(t, "40%", c.Active.Width)
	assert.Equal(t, "100%", c.Total.Width)
}

func TestCountStatuses_EmptyIsZeroPercent(t *testing.T) {
	c := CountStatuses(nil)
	assert.Zero(t, c.Total.Count)
	assert.Zero(t, c.Active.Percent)
	assert.Zero(t, c.Total.Percent)
	assert.Equal(t, "0%", BarWidth(c.Total))
}

func testView() *tracking.View {
	holder := "P1"
	return &tracking.View{
		Records: []models.MergedTrackingRecord{
			{UnitID: "U1", VehicleID: "V1", HolderID: &holder, DriverName: "Juan Cruz", Route: "R1", Status: "moving",
				Tier: models.TierActive, StatusLabel: "Active", LastUpdate: now.Add(-45 * time.Minute), Particular: tracking.NoParticular},
			{UnitID: "U2", VehicleID: tracking.UnknownVehicle, DriverName: tracking.UnknownDriver, Route: "R2", Status: "idle",
				Tier: models.TierIdle, StatusLabel: "Idle", LastUpdate: now.Add(-25 * time.Hour)},
		},
		RouteOptions: []string{tracking.AllRoutes, "R1", "R2"},
	}
}

func TestListItems_RouteFilter(t *testing.T) {
	v := testView()
	v.SelectedUnitID, v.HasSelection = "U2", true

	all := ListItems(v, tracking.AllRoutes, now)
	require.Len(t, all, 2)
	assert.Equal(t, "45m ago", all[0].TimeAgo)
	assert.Equal(t, "1d ago", all[1].TimeAgo)
	assert.False(t, all[0].Selected)
	assert.True(t, all[1].Selected)

	assert.Len(t, ListItems(v, "", now), 2)

	r1 := ListItems(v, "R1", now)
	require.Len(t, r1, 1)
	assert.Equal(t, "U1", r1[0].UnitID)

	assert.Empty(t, ListItems(v, "R9", now))
}

func TestSelectedDetail(t *testing.T) {
	v := testView()
	_, ok := SelectedDetail(v, now)
	assert.False(t, ok, "nothing selected")

	v.SelectedUnitID, v.HasSelection = "U1", true
	d, ok := SelectedDetail(v, now)
	require.True(t, ok)
	assert.Equal(t, "V1", d.VehicleID)
	assert.Equal(t, "Juan Cruz", d.DriverName)
	assert.Equal(t, "45m ago", d.TimeAgo)
	require.NotNil(t, d.HolderID)
	assert.Equal(t, "P1", *d.HolderID)

	v.SelectedUnitID = "U9"
	_, ok = SelectedDetail(v, now)
	assert.False(t, ok, "selected unit outside the join has no detail")
}
