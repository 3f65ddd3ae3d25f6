package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fleet-tracker/internal/models"
	"fleet-tracker/internal/presenter"
	"fleet-tracker/internal/tracking"

	"go.uber.org/zap"
)

const (
	defaultTTL          = 60 * time.Second
	defaultWriteTimeout = 2 * time.Second
)

// Projection cached read model of one tracking view.
type Projection struct {
	ViewID         string                        `json:"view_id"`
	Version        uint64                        `json:"version"`
	Loading        bool                          `json:"loading"`
	ComputedAt     time.Time                     `json:"computed_at"`
	Records        []models.MergedTrackingRecord `json:"records"`
	RouteOptions   []string                      `json:"route_options"`
	Counters       presenter.Counters            `json:"counters"`
	SelectedUnitID string                        `json:"selected_unit_id,omitempty"`
	FailedSources  []models.Source               `json:"failed_sources,omitempty"`
}

// NewProjection builds the cached form of v.
func NewProjection(viewID string, v *tracking.View) Projection {
	p := Projection{
		ViewID:        viewID,
		Version:       v.Version,
		Loading:       v.Loading,
		ComputedAt:    v.ComputedAt,
		Records:       v.Records,
		RouteOptions:  v.RouteOptions,
		Counters:      presenter.CountStatuses(v.Records),
		FailedSources: v.FailedSources,
	}
	if p.Records == nil {
		p.Records = []models.MergedTrackingRecord{}
	}
	if v.HasSelection {
		p.SelectedUnitID = v.SelectedUnitID
	}
	return p
}

// CacheManager writes the live view to the KV store so other services can read
// the fleet without subscribing to the sources.
type CacheManager struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending *tracking.View
	notify  chan struct{}
}

// NewCacheManager ttl <= 0 means 60s.
func NewCacheManager(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *CacheManager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CacheManager{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// Key cache key of viewID.
func (c *CacheManager) Key(viewID string) string {
	return fmt.Sprintf("%s%s:full", c.prefix, viewID)
}

// UpdateView writes the projection of v.
func (c *CacheManager) UpdateView(ctx context.Context, viewID string, v *tracking.View) error {
	key := c.Key(viewID)

	jsonData, err := json.Marshal(NewProjection(viewID, v))
	if err != nil {
		return fmt.Errorf("failed to marshal tracking view: %w", err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated tracking view cache",
		zap.String("view_id", viewID),
		zap.String("key", key),
		zap.Uint64("version", v.Version),
	)
	return nil
}

// GetView reads the cached projection of viewID.
func (c *CacheManager) GetView(ctx context.Context, viewID string) (*Projection, error) {
	raw, err := c.kv.Get(ctx, c.Key(viewID))
	if err != nil {
		return nil, err
	}
	var p Projection
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracking view: %w", err)
	}
	return &p, nil
}

// Listener hands views to Run without blocking the engine. Only the newest
// pending view is kept.
func (c *CacheManager) Listener() tracking.ViewListener {
	return func(v *tracking.View) {
		c.mu.Lock()
		c.pending = v
		c.mu.Unlock()
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// Run writes pending views until ctx is done. Views are also refreshed every
// half TTL so the key does not expire while the view is idle.
func (c *CacheManager) Run(ctx context.Context, viewID string) {
	refresh := time.NewTicker(c.ttl / 2)
	defer refresh.Stop()

	var last *tracking.View
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
			c.mu.Lock()
			if c.pending != nil {
				last, c.pending = c.pending, nil
			}
			c.mu.Unlock()
		case <-refresh.C:
		}
		if last == nil {
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
		if err := c.UpdateView(writeCtx, viewID, last); err != nil {
			c.logger.Warn("Failed to update tracking view cache",
				zap.String("view_id", viewID),
				zap.Error(err),
			)
		}
		cancel()
	}
}
