package tracking

import (
	"strings"

	"fleet-tracker/internal/models"
)

// MarkerStatus classifies a raw status for marker styling and popups.
// "inactive" is deliberately not idle here; see CounterTier.
func MarkerStatus(raw string) (models.Tier, string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "moving":
		return models.TierActive, "Active"
	case "idle":
		return models.TierIdle, "Idle"
	case "stop":
		return models.TierStopped, "Stop"
	default:
		return models.TierUnknown, "Unknown"
	}
}

// CounterTier classifies a raw status for the aggregate counters, where
// "inactive" counts as idle. Changing this changes the displayed totals.
func CounterTier(raw string) models.Tier {
	if strings.EqualFold(strings.TrimSpace(raw), "inactive") {
		return models.TierIdle
	}
	tier, _ := MarkerStatus(raw)
	return tier
}
