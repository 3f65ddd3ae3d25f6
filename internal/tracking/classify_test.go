package tracking

import (
	"testing"

	"fleet-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMarkerStatus(t *testing.T) {
	tests := []struct {
		raw   string
		tier  models.Tier
		label string
	}{
		{"active", models.TierActive, "Active"},
		{"Moving", models.TierActive, "Active"},
		{"IDLE", models.TierIdle, "Idle"},
		{"stop", models.TierStopped, "Stop"},
		{"inactive", models.TierUnknown, "Unknown"},
		{"", models.TierUnknown, "Unknown"},
		{"parked", models.TierUnknown, "Unknown"},
	}
	for _, tt := range tests {
		tier, label := MarkerStatus(tt.raw)
		assert.Equal(t, tt.tier, tier, "raw=%q", tt.raw)
		assert.Equal(t, tt.label, label, "raw=%q", tt.raw)
	}
}

func TestCounterTier_InactiveCountsAsIdle(t *testing.T) {
	assert.Equal(t, models.TierIdle, CounterTier("inactive"))
	assert.Equal(t, models.TierIdle, CounterTier("Inactive"))
	assert.Equal(t, models.TierIdle, CounterTier("idle"))
	assert.Equal(t, models.TierActive, CounterTier("moving"))
	assert.Equal(t, models.TierStopped, CounterTier("stop"))

	// marker styling keeps its own rule
	tier, _ := MarkerStatus("inactive")
	assert.NotEqual(t, CounterTier("inactive"), tier)
}
