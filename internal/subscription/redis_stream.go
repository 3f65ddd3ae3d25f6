package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "fleet-tracker/common/redis"
	"fleet-tracker/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	streamDataField  = "data"
	defaultBlock     = 5 * time.Second
	streamMaxBackoff = 30 * time.Second
)

// StreamOptions settings of a StreamProvider.
type StreamOptions struct {
	// Prefix stream name prefix; the stream of a source is Prefix+source.
	Prefix string
	// Block XREAD block timeout, bounds how long a cancelled subscription lingers.
	Block time.Duration
	// MaxLen approximate trim length applied by PublishSnapshot (0 = no trim).
	MaxLen int64
	// Location zone of timestamps sent without an offset (nil = time.Local).
	Location *time.Location
}

// StreamProvider subscribes to snapshot streams in Redis. Every entry carries
// the full snapshot JSON in its "data" field; the newest entry is the current set.
type StreamProvider struct {
	client *redis.Client
	opts   StreamOptions
	logger *zap.Logger
}

// NewStreamProvider creates a Redis Streams provider.
func NewStreamProvider(client *redis.Client, opts StreamOptions, logger *zap.Logger) *StreamProvider {
	if opts.Block <= 0 {
		opts.Block = defaultBlock
	}
	return &StreamProvider{client: client, opts: opts, logger: logger}
}

// StreamName stream holding the snapshots of source.
func (p *StreamProvider) StreamName(source models.Source) string {
	return p.opts.Prefix + string(source)
}

// PublishSnapshot appends snap as the new current set of its source.
func (p *StreamProvider) PublishSnapshot(ctx context.Context, snap models.Snapshot) (string, error) {
	data, err := models.EncodeSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s snapshot: %w", snap.Source, err)
	}
	return rediscommon.PublishJSONToStream(ctx, p.client, p.StreamName(snap.Source), json.RawMessage(data), p.opts.MaxLen)
}

// Subscribe implements Provider.
func (p *StreamProvider) Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error) {
	if _, err := models.ParseSource(string(source)); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	go p.consume(subCtx, source, sink)
	return CancelFunc(cancel), nil
}

// consume delivers the newest entry, then every later one. After an error the
// source is reported failed and the loop starts over from the newest entry.
func (p *StreamProvider) consume(ctx context.Context, source models.Source, sink Sink) {
	stream := p.StreamName(source)
	backoff := time.Second

	for ctx.Err() == nil {
		err := p.follow(ctx, source, stream, sink)
		if err == nil || ctx.Err() != nil {
			return
		}

		// the sink reports the degradation once; this repeats every cycle
		sink.Fail(source, err)
		p.logger.Debug("Failed to follow snapshot stream",
			zap.String("stream", stream),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > streamMaxBackoff {
				backoff = streamMaxBackoff
			}
		}
	}
}

func (p *StreamProvider) follow(ctx context.Context, source models.Source, stream string, sink Sink) error {
	latest, err := rediscommon.ReadLatest(ctx, p.client, stream)
	if err != nil {
		return err
	}

	lastID := "0-0"
	if latest != nil {
		snap, err := decodeStreamEntry(source, latest, p.opts.Location)
		if err != nil {
			return err
		}
		lastID = latest.ID
		if ctx.Err() != nil {
			return nil
		}
		sink.Snapshot(snap)
	}

	for ctx.Err() == nil {
		msgs, err := rediscommon.ReadAfter(ctx, p.client, stream, lastID, 0, p.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read from stream %s: %w", stream, err)
		}
		if len(msgs) == 0 {
			continue
		}
		// only the newest entry of a batch matters
		newest := msgs[len(msgs)-1]
		lastID = newest.ID
		snap, err := decodeStreamEntry(source, &newest, p.opts.Location)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		sink.Snapshot(snap)
	}
	return nil
}

func decodeStreamEntry(source models.Source, msg *rediscommon.StreamMessage, loc *time.Location) (models.Snapshot, error) {
	raw, ok := msg.Values[streamDataField]
	if !ok {
		return models.Snapshot{}, fmt.Errorf("stream entry %s has no %q field", msg.ID, streamDataField)
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return models.Snapshot{}, fmt.Errorf("stream entry %s: unexpected %T in %q", msg.ID, raw, streamDataField)
	}
	snap, err := models.DecodeSnapshot(source, data, loc)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("stream entry %s: %w", msg.ID, err)
	}
	return snap, nil
}
