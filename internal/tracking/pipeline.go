package tracking

import (
	"errors"
	"fmt"
	"time"

	"fleet-tracker/internal/models"
)

// ErrUnknownStalePolicy stale-selection policy name not recognised.
var ErrUnknownStalePolicy = errors.New("unknown stale selection policy")

// StaleSelectionPolicy what happens to a selection whose unit leaves the join.
type StaleSelectionPolicy string

const (
	// StaleSelectionRetain keeps the selection; detail stays hidden until the unit returns.
	StaleSelectionRetain StaleSelectionPolicy = "retain"
	// StaleSelectionClear clears the selection as soon as the unit leaves the join.
	StaleSelectionClear StaleSelectionPolicy = "clear"
)

// ParseStaleSelectionPolicy "" means retain.
func ParseStaleSelectionPolicy(s string) (StaleSelectionPolicy, error) {
	switch StaleSelectionPolicy(s) {
	case "", StaleSelectionRetain:
		return StaleSelectionRetain, nil
	case StaleSelectionClear:
		return StaleSelectionClear, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStalePolicy, s)
	}
}

// Renderer sink that mirrors the join onto a map. Implemented by mapview.Reconciler.
type Renderer interface {
	// SyncMarkers adds, refreshes and removes markers to match records.
	SyncMarkers(records []models.MergedTrackingRecord)
	// SyncViewport fits or focuses the viewport from the current records.
	SyncViewport(records []models.MergedTrackingRecord, selectedUnitID string, hasSelection bool)
	// Teardown removes every marker and releases the surface.
	Teardown()
}

// PipelineOptions settings of a Pipeline.
type PipelineOptions struct {
	Location       *time.Location
	Now            func() time.Time
	StaleSelection StaleSelectionPolicy
}

// Pipeline the synchronous dataflow graph: four source nodes, one join node,
// the selection controller and the renderer sink. Not safe for concurrent use;
// Engine serialises every call onto one goroutine.
type Pipeline struct {
	opts      PipelineOptions
	renderer  Renderer
	selection *SelectionController

	inputs          Inputs
	positionsLoaded bool
	failed          map[models.Source]bool

	result     Result
	computedAt time.Time
	version    uint64
}

// NewPipeline renderer may be nil (no map attached).
func NewPipeline(opts PipelineOptions, renderer Renderer) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleSelection == "" {
		opts.StaleSelection = StaleSelectionRetain
	}
	return &Pipeline{
		opts:      opts,
		renderer:  renderer,
		selection: NewSelectionController(),
		failed:    make(map[models.Source]bool),
		result:    Result{RouteOptions: []string{AllRoutes}},
	}
}

// Selection read-only handle on the selection state.
func (p *Pipeline) Selection() SelectionReader {
	return p.selection
}

// Version increments whenever the published view would change.
func (p *Pipeline) Version() uint64 {
	return p.version
}

// ApplySnapshot replaces one source and recomputes. Reports whether the source
// had been marked failed before.
func (p *Pipeline) ApplySnapshot(snap models.Snapshot) (recovered bool) {
	switch snap.Source {
	case models.SourcePositions:
		p.inputs.Positions = snap.Positions
		p.positionsLoaded = true
	case models.SourceUnits:
		p.inputs.Units = snap.Units
	case models.SourcePersonnel:
		p.inputs.Personnel = snap.Personnel
	case models.SourceNotes:
		p.inputs.Notes = snap.Notes
	default:
		return false
	}
	recovered = p.failed[snap.Source]
	delete(p.failed, snap.Source)
	p.recompute()
	p.Render()
	return recovered
}

// FailSource degrades source to empty and recomputes. Reports whether this is
// the first failure since the last good snapshot.
func (p *Pipeline) FailSource(source models.Source) (first bool) {
	if _, err := models.ParseSource(string(source)); err != nil {
		return false
	}
	first = !p.failed[source]
	p.failed[source] = true
	switch source {
	case models.SourcePositions:
		p.inputs.Positions = nil
	case models.SourceUnits:
		p.inputs.Units = nil
	case models.SourcePersonnel:
		p.inputs.Personnel = nil
	case models.SourceNotes:
		p.inputs.Notes = nil
	}
	p.recompute()
	p.Render()
	return first
}

// Toggle selects or deselects unitID. Selecting a unit outside the current join
// is ignored. Does not recompute the join.
func (p *Pipeline) Toggle(unitID string) bool {
	if !p.selection.IsSelected(unitID) && !p.hasRecord(unitID) {
		return false
	}
	p.selection.Toggle(unitID)
	p.version++
	p.syncViewport()
	return true
}

// ClearSelection drops the selection (detail dismissed). Does not recompute the join.
func (p *Pipeline) ClearSelection() {
	if _, ok := p.selection.Selected(); !ok {
		return
	}
	p.selection.Clear()
	p.version++
	p.syncViewport()
}

// Tick recomputes if the local date moved since the last recompute, otherwise
// only refreshes markers so relative times stay current.
func (p *Pipeline) Tick() (dayChanged bool) {
	now := p.opts.Now()
	if !p.computedAt.IsZero() && !SameLocalDay(p.computedAt, now, p.opts.Location) {
		p.recompute()
		p.Render()
		return true
	}
	if p.renderer != nil {
		p.renderer.SyncMarkers(p.result.Records)
	}
	return false
}

// Render pushes the full current state to the renderer.
func (p *Pipeline) Render() {
	if p.renderer == nil {
		return
	}
	p.renderer.SyncMarkers(p.result.Records)
	p.syncViewport()
}

// Teardown clears selection and tears down the renderer (view unmounted).
func (p *Pipeline) Teardown() {
	p.selection.Clear()
	if p.renderer != nil {
		p.renderer.Teardown()
	}
	p.version++
}

// View immutable copy of the current state.
func (p *Pipeline) View() *View {
	selected, has := p.selection.Selected()
	var failed []models.Source
	for _, s := range models.AllSources {
		if p.failed[s] {
			failed = append(failed, s)
		}
	}
	return &View{
		Version:        p.version,
		Loading:        !p.positionsLoaded,
		Records:        p.result.Records,
		RouteOptions:   p.result.RouteOptions,
		SelectedUnitID: selected,
		HasSelection:   has,
		FailedSources:  failed,
		ComputedAt:     p.computedAt,
	}
}

func (p *Pipeline) recompute() {
	now := p.opts.Now()
	p.result = Recompute(p.inputs, now, p.opts.Location)
	p.computedAt = now
	p.version++

	if p.opts.StaleSelection == StaleSelectionClear {
		if selected, ok := p.selection.Selected(); ok && !p.hasRecord(selected) {
			p.selection.Clear()
		}
	}
}

func (p *Pipeline) syncViewport() {
	if p.renderer == nil {
		return
	}
	selected, has := p.selection.Selected()
	p.renderer.SyncViewport(p.result.Records, selected, has)
}

func (p *Pipeline) hasRecord(unitID string) bool {
	for _, r := range p.result.Records {
		if r.UnitID == unitID {
			return true
		}
	}
	return false
}
