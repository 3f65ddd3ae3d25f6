package tracking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startEngine(t *testing.T, provider subscription.Provider, r Renderer) (*Engine, context.CancelFunc) {
	t.Helper()
	e := NewEngine(provider, r, EngineOptions{
		Pipeline:       PipelineOptions{Location: time.UTC, Now: func() time.Time { return joinNow }},
		RenderInterval: time.Hour,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e, cancel
}

func TestEngine_AppliesHubSnapshots(t *testing.T) {
	hub := subscription.NewHub()
	hub.Publish(positionsSnapshot("U1", "U2"))

	var published atomic.Int32
	r := &recordingRenderer{}
	e := NewEngine(hub, r, EngineOptions{
		Pipeline: PipelineOptions{Location: time.UTC, Now: func() time.Time { return joinNow }},
	}, zap.NewNop())
	e.OnView(func(v *View) { published.Add(1) })
	require.True(t, e.View().Loading)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	defer func() {
		cancel()
		<-e.Done()
	}()

	require.Eventually(t, func() bool {
		return len(e.View().Records) == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, e.View().Loading)
	assert.Positive(t, published.Load())

	units := models.EmptySnapshot(models.SourceUnits)
	units.Units = []models.UnitRecord{{UnitID: "U1", VehicleID: "V1"}}
	hub.Publish(units)

	require.Eventually(t, func() bool {
		rec, ok := e.View().Record("U1")
		return ok && rec.VehicleID == "V1"
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_ToggleAndClear(t *testing.T) {
	hub := subscription.NewHub()
	hub.Publish(positionsSnapshot("U1"))
	r := &recordingRenderer{}
	e, _ := startEngine(t, hub, r)

	require.Eventually(t, func() bool { return len(e.View().Records) == 1 }, time.Second, 5*time.Millisecond)

	e.Toggle("U1")
	require.Eventually(t, func() bool { return e.View().HasSelection }, time.Second, 5*time.Millisecond)
	vp, ok := r.lastViewport()
	require.True(t, ok)
	assert.Equal(t, "U1", vp.selected)

	e.ClearSelection()
	require.Eventually(t, func() bool { return !e.View().HasSelection }, time.Second, 5*time.Millisecond)
}

func TestEngine_SourceFailureDegrades(t *testing.T) {
	hub := subscription.NewHub()
	hub.Publish(positionsSnapshot("U1"))
	e, _ := startEngine(t, hub, nil)
	require.Eventually(t, func() bool { return len(e.View().Records) == 1 }, time.Second, 5*time.Millisecond)

	hub.Fail(models.SourcePositions, errors.New("permission denied"))
	require.Eventually(t, func() bool {
		v := e.View()
		return len(v.Records) == 0 && len(v.FailedSources) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_SubscribeErrorTreatedAsFailure(t *testing.T) {
	hub := subscription.NewHub()
	router := subscription.NewRouter(map[models.Source]subscription.Provider{
		models.SourcePositions: hub,
		models.SourceUnits:     hub,
		models.SourcePersonnel: hub,
	})
	e, _ := startEngine(t, router, nil)

	require.Eventually(t, func() bool {
		v := e.View()
		return len(v.FailedSources) == 1 && v.FailedSources[0] == models.SourceNotes
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_TeardownCancelsSubscriptions(t *testing.T) {
	hub := subscription.NewHub()
	r := &recordingRenderer{}
	e, cancel := startEngine(t, hub, r)

	require.Eventually(t, func() bool {
		return hub.Subscribers(models.SourcePositions) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-e.Done()
	assert.Zero(t, hub.Subscribers(models.SourcePositions))
	assert.Equal(t, 1, r.teardownCount())

	// deliveries after teardown are dropped
	hub.Publish(positionsSnapshot("U1"))
	e.Toggle("U1")
	assert.Empty(t, e.View().Records)
}

func TestEngine_InvokeRunsOnLoop(t *testing.T) {
	hub := subscription.NewHub()
	hub.Publish(positionsSnapshot("U1"))
	e, _ := startEngine(t, hub, nil)
	require.Eventually(t, func() bool { return len(e.View().Records) == 1 }, time.Second, 5*time.Millisecond)
	e.Toggle("U1")

	ran := make(chan string, 1)
	e.Invoke(func(p *Pipeline) {
		id, _ := p.Selection().Selected()
		ran <- id
	})
	select {
	case id := <-ran:
		assert.Equal(t, "U1", id, "invocations run after earlier events")
	case <-time.After(time.Second):
		t.Fatal("invoke did not run")
	}
}
