package subscription

import (
	"context"
	"reflect"
	"time"

	"fleet-tracker/internal/models"

	"go.uber.org/zap"
)

const defaultPollInterval = 10 * time.Second

// Fetcher reads the complete current set of one source.
type Fetcher interface {
	Fetch(ctx context.Context, source models.Source) (models.Snapshot, error)
}

// Poller turns a Fetcher into a push subscription: it fetches on subscribe and
// then every interval, delivering only when the set changed.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller interval <= 0 means 10s.
func NewPoller(fetcher Fetcher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{fetcher: fetcher, interval: interval, logger: logger}
}

// Subscribe implements Provider.
func (p *Poller) Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error) {
	if _, err := models.ParseSource(string(source)); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	go p.poll(subCtx, source, sink)
	return CancelFunc(cancel), nil
}

func (p *Poller) poll(ctx context.Context, source models.Source, sink Sink) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last      models.Snapshot
		delivered bool
	)
	for {
		snap, err := p.fetcher.Fetch(ctx, source)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			p.logger.Debug("Poll failed",
				zap.String("source", string(source)),
				zap.Error(err),
			)
			sink.Fail(source, err)
			delivered = false
		case !delivered || !reflect.DeepEqual(last, snap):
			sink.Snapshot(snap)
			last, delivered = snap, true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
