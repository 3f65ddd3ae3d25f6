package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/subscription"

	"go.uber.org/zap"
)

// EngineOptions settings of an Engine.
type EngineOptions struct {
	Pipeline PipelineOptions
	// RenderInterval period of the render tick (relative times, date rollover).
	RenderInterval time.Duration
	// Sources subscribed on Run; defaults to all four.
	Sources []models.Source
}

// ViewListener called on the engine goroutine after every turn that changed the view.
type ViewListener func(v *View)

// Engine runs the tracking pipeline on a single goroutine. Subscription
// deliveries, selection changes, ticks and invocations are queued and applied
// one at a time, each to completion, so observers never see a half-applied turn.
type Engine struct {
	provider       subscription.Provider
	pipeline       *Pipeline
	logger         *zap.Logger
	renderInterval time.Duration
	sources        []models.Source
	listeners      []ViewListener

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	view atomic.Pointer[View]
	done chan struct{}
}

// NewEngine renderer may be nil.
func NewEngine(provider subscription.Provider, renderer Renderer, opts EngineOptions, logger *zap.Logger) *Engine {
	if opts.RenderInterval <= 0 {
		opts.RenderInterval = 30 * time.Second
	}
	if len(opts.Sources) == 0 {
		opts.Sources = models.AllSources
	}
	e := &Engine{
		provider:       provider,
		pipeline:       NewPipeline(opts.Pipeline, renderer),
		logger:         logger,
		renderInterval: opts.RenderInterval,
		sources:        opts.Sources,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	e.view.Store(e.pipeline.View())
	return e
}

// OnView registers a listener. Must be called before Run.
func (e *Engine) OnView(l ViewListener) {
	e.listeners = append(e.listeners, l)
}

// View latest published view. Never nil.
func (e *Engine) View() *View {
	return e.view.Load()
}

// Done closed once Run has torn everything down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Snapshot implements subscription.Sink.
func (e *Engine) Snapshot(snap models.Snapshot) {
	e.enqueue(func() {
		if e.pipeline.ApplySnapshot(snap) {
			e.logger.Info("Tracking source recovered",
				zap.String("source", string(snap.Source)),
			)
		}
		e.logger.Debug("Applied source snapshot",
			zap.String("source", string(snap.Source)),
			zap.Int("records", snap.Len()),
		)
	})
}

// Fail implements subscription.Sink. The source degrades to empty; the failure
// is logged once until the source delivers again.
func (e *Engine) Fail(source models.Source, err error) {
	e.enqueue(func() {
		if e.pipeline.FailSource(source) {
			e.logger.Warn("Tracking source failed, treating it as empty",
				zap.String("source", string(source)),
				zap.Error(err),
			)
		}
	})
}

// Toggle selects or deselects unitID (list row or marker click).
func (e *Engine) Toggle(unitID string) {
	e.enqueue(func() {
		if !e.pipeline.Toggle(unitID) {
			e.logger.Debug("Ignored selection of unit outside the current join",
				zap.String("unit_id", unitID),
			)
		}
	})
}

// ClearSelection drops the selection (detail dismissed).
func (e *Engine) ClearSelection() {
	e.enqueue(e.pipeline.ClearSelection)
}

// Invoke runs fn on the engine goroutine with exclusive access to the pipeline.
func (e *Engine) Invoke(fn func(p *Pipeline)) {
	e.enqueue(func() { fn(e.pipeline) })
}

// Run subscribes every source and processes events until ctx is done, then
// cancels all subscriptions and tears down the renderer.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	cancels := make([]subscription.CancelFunc, 0, len(e.sources))
	for _, source := range e.sources {
		cancel, err := e.provider.Subscribe(ctx, source, e)
		if err != nil {
			e.Fail(source, err)
			continue
		}
		cancels = append(cancels, cancel)
	}

	e.logger.Info("Tracking engine started",
		zap.Int("sources", len(e.sources)),
		zap.Int("subscribed", len(cancels)),
		zap.Duration("render_interval", e.renderInterval),
	)

	ticker := time.NewTicker(e.renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.teardown(cancels)
			return nil
		case <-ticker.C:
			if e.pipeline.Tick() {
				e.logger.Info("Local date changed, recomputed tracking view")
			}
			e.publish()
		case <-e.wake:
			e.drain(ctx)
		}
	}
}

func (e *Engine) drain(ctx context.Context) {
	for {
		e.mu.Lock()
		batch := e.queue
		e.queue = nil
		e.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			if ctx.Err() != nil {
				return
			}
			fn()
			e.publish()
		}
	}
}

func (e *Engine) publish() {
	if cur := e.view.Load(); cur != nil && cur.Version == e.pipeline.Version() {
		return
	}
	v := e.pipeline.View()
	e.view.Store(v)
	for _, l := range e.listeners {
		l(v)
	}
}

func (e *Engine) teardown(cancels []subscription.CancelFunc) {
	e.mu.Lock()
	e.closed = true
	e.queue = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	e.pipeline.Teardown()
	e.view.Store(e.pipeline.View())
	e.logger.Info("Tracking engine stopped")
}

func (e *Engine) enqueue(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}
