package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleet-tracker/internal/config"
	"fleet-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Tracking.Sources = config.SourcesConfig{
		Positions: config.BackendMemory,
		Units:     config.BackendMemory,
		Personnel: config.BackendMemory,
		Notes:     config.BackendMemory,
	}
	cfg.Tracking.Cache.Enabled = false
	cfg.Tracking.Timezone = "UTC"
	cfg.HTTP.Addr = "127.0.0.1:0"
	return cfg
}

func TestTrackingService_MemoryBackendsEndToEnd(t *testing.T) {
	svc, err := NewTrackingService(memoryConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	now := time.Now().UTC()
	positions := models.EmptySnapshot(models.SourcePositions)
	positions.Positions = []models.PositionReport{
		{UnitID: "U1", Route: "R1", Status: "moving", Latitude: 14.5, Longitude: 121.0, LastUpdate: now},
	}
	holder := "P1"
	units := models.EmptySnapshot(models.SourceUnits)
	units.Units = []models.UnitRecord{{UnitID: "U1", HolderID: &holder, VehicleID: "V1"}}
	personnel := models.EmptySnapshot(models.SourcePersonnel)
	personnel.Personnel = []models.PersonnelRecord{{PersonnelID: "P1", FirstName: "Juan", LastName: "Cruz"}}

	svc.Hub().Publish(positions)
	svc.Hub().Publish(units)
	svc.Hub().Publish(personnel)

	require.Eventually(t, func() bool {
		rec, ok := svc.Engine().View().Record("U1")
		return ok && rec.DriverName == "Juan Cruz"
	}, 2*time.Second, 10*time.Millisecond)

	// select through the API, then read the detail and the map layer
	req := httptest.NewRequest(http.MethodPost, "/tracking/api/v1/selection/toggle", strings.NewReader(`{"unit_id":"U1"}`))
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return svc.Engine().View().HasSelection }, 2*time.Second, 10*time.Millisecond)

	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tracking/api/v1/map", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Code   int `json:"code"`
		Result struct {
			Markers []struct {
				UnitID string `json:"unit_id"`
			} `json:"markers"`
			Viewport struct {
				Mode string `json:"mode"`
				Zoom int    `json:"zoom"`
			} `json:"viewport"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Result.Markers, 1)
	assert.Equal(t, "U1", body.Result.Markers[0].UnitID)
	assert.Equal(t, "center", body.Result.Viewport.Mode)
	assert.Equal(t, 16, body.Result.Viewport.Zoom)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, svc.Stop(context.Background()))
	assert.False(t, svc.Engine().View().HasSelection, "teardown clears the selection")
}

func TestNewTrackingService_RejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Tracking.Sources.Notes = "kafka"
	_, err := NewTrackingService(cfg, zap.NewNop())
	assert.Error(t, err)
}
