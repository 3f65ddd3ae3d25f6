package subscription

import (
	"context"
	"errors"
	"fmt"

	"fleet-tracker/internal/models"
)

var (
	// ErrNoRoute no provider configured for the source.
	ErrNoRoute = errors.New("no provider configured for source")
	// ErrUnknownBackend backend name in configuration is not supported.
	ErrUnknownBackend = errors.New("unknown subscription backend")
)

// Sink receives deliveries of one subscription. Implementations must not block;
// calls may come from any goroutine.
type Sink interface {
	// Snapshot full replacement set of the source.
	Snapshot(snap models.Snapshot)
	// Fail the subscription hit an error; the source should be treated as empty.
	Fail(source models.Source, err error)
}

// CancelFunc stops a subscription. Safe to call more than once.
type CancelFunc func()

// Provider establishes push subscriptions delivering full snapshots.
type Provider interface {
	Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error)
}

// Router dispatches each source to its own provider.
type Router struct {
	routes map[models.Source]Provider
}

// NewRouter routes must contain one provider per source that will be subscribed.
func NewRouter(routes map[models.Source]Provider) *Router {
	copied := make(map[models.Source]Provider, len(routes))
	for s, p := range routes {
		copied[s] = p
	}
	return &Router{routes: copied}
}

// Subscribe implements Provider.
func (r *Router) Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error) {
	p, ok := r.routes[source]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, source)
	}
	return p.Subscribe(ctx, source, sink)
}
