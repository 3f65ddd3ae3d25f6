package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-tracker/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RESTFetcher reads snapshots from a managed backend exposing GET <base>/<source>
// that returns the JSON array of the source's records.
type RESTFetcher struct {
	client *resty.Client
	loc    *time.Location
	logger *zap.Logger
}

// NewRESTFetcher token is sent as a bearer token when not empty. loc is the
// zone of timestamps sent without an offset (nil = time.Local).
func NewRESTFetcher(baseURL, token string, timeout time.Duration, loc *time.Location, logger *zap.Logger) *RESTFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &RESTFetcher{client: client, loc: loc, logger: logger}
}

// Fetch implements Fetcher.
func (f *RESTFetcher) Fetch(ctx context.Context, source models.Source) (models.Snapshot, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get("/" + string(source))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	if resp.IsError() {
		return models.Snapshot{}, fmt.Errorf("failed to fetch %s: status %d", source, resp.StatusCode())
	}

	snap, err := models.DecodeSnapshot(source, resp.Body(), f.loc)
	if err != nil {
		return models.Snapshot{}, err
	}
	f.logger.Debug("Fetched snapshot",
		zap.String("source", string(source)),
		zap.Int("records", snap.Len()),
	)
	return snap, nil
}
