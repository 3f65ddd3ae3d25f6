package subscription

import (
	"sync"

	"fleet-tracker/internal/models"
)

// collectingSink records deliveries for assertions.
type collectingSink struct {
	mu        sync.Mutex
	snapshots []models.Snapshot
	failures  []error
}

func (s *collectingSink) Snapshot(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

func (s *collectingSink) Fail(_ models.Source, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *collectingSink) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *collectingSink) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}

func (s *collectingSink) last() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return models.Snapshot{}
	}
	return s.snapshots[len(s.snapshots)-1]
}

func positions(ids ...string) models.Snapshot {
	snap := models.EmptySnapshot(models.SourcePositions)
	for _, id := range ids {
		snap.Positions = append(snap.Positions, models.PositionReport{UnitID: id, Route: "R1"})
	}
	return snap
}
