package subscription

import (
	"context"
	"sync"

	"fleet-tracker/internal/models"
)

// Hub in-process provider. Publish fans a snapshot out to every subscriber of
// its source; new subscribers immediately receive the latest snapshot.
type Hub struct {
	mu     sync.Mutex
	latest map[models.Source]models.Snapshot
	subs   map[models.Source]map[uint64]Sink
	nextID uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		latest: make(map[models.Source]models.Snapshot),
		subs:   make(map[models.Source]map[uint64]Sink),
	}
}

// Publish stores snap as the latest of its source and delivers it.
func (h *Hub) Publish(snap models.Snapshot) {
	h.mu.Lock()
	h.latest[snap.Source] = snap
	sinks := h.sinksLocked(snap.Source)
	h.mu.Unlock()

	for _, s := range sinks {
		s.Snapshot(snap)
	}
}

// Fail reports err to every subscriber of source and forgets its latest snapshot.
func (h *Hub) Fail(source models.Source, err error) {
	h.mu.Lock()
	delete(h.latest, source)
	sinks := h.sinksLocked(source)
	h.mu.Unlock()

	for _, s := range sinks {
		s.Fail(source, err)
	}
}

// Subscribers number of live subscriptions for source.
func (h *Hub) Subscribers(source models.Source) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[source])
}

// Subscribe implements Provider. The subscription also ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error) {
	if _, err := models.ParseSource(string(source)); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[source] == nil {
		h.subs[source] = make(map[uint64]Sink)
	}
	h.subs[source][id] = sink
	latest, hasLatest := h.latest[source]
	h.mu.Unlock()

	if hasLatest {
		sink.Snapshot(latest)
	}

	var once sync.Once
	remove := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[source], id)
			h.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

func (h *Hub) sinksLocked(source models.Source) []Sink {
	sinks := make([]Sink, 0, len(h.subs[source]))
	for _, s := range h.subs[source] {
		sinks = append(sinks, s)
	}
	return sinks
}
