package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqttcommon "fleet-tracker/common/mqtt"
	"fleet-tracker/internal/models"

	"go.uber.org/zap"
)

// MQTTSubscriber subset of common/mqtt.Client used by MQTTProvider.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTPublisher subset of common/mqtt.Client used to publish snapshots.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTProvider subscribes to retained snapshot topics. The broker replays the
// retained message on subscribe, which is the current set of the source.
type MQTTProvider struct {
	client      MQTTSubscriber
	topicPrefix string
	qos         byte
	loc         *time.Location
	logger      *zap.Logger
}

// NewMQTTProvider topicPrefix e.g. "fleet/tracking". loc is the zone of
// timestamps sent without an offset (nil = time.Local).
func NewMQTTProvider(client MQTTSubscriber, topicPrefix string, qos byte, loc *time.Location, logger *zap.Logger) *MQTTProvider {
	return &MQTTProvider{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         qos,
		loc:         loc,
		logger:      logger,
	}
}

// SnapshotTopic topic carrying the snapshots of source.
func SnapshotTopic(prefix string, source models.Source) string {
	return fmt.Sprintf("%s/%s/snapshot", strings.TrimSuffix(prefix, "/"), source)
}

// PublishMQTTSnapshot publishes snap retained so late subscribers receive it.
func PublishMQTTSnapshot(pub MQTTPublisher, prefix string, qos byte, snap models.Snapshot) error {
	data, err := models.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", snap.Source, err)
	}
	return pub.Publish(SnapshotTopic(prefix, snap.Source), qos, true, data)
}

// Subscribe implements Provider. A payload that cannot be decoded fails the
// source until the next good one arrives.
func (p *MQTTProvider) Subscribe(ctx context.Context, source models.Source, sink Sink) (CancelFunc, error) {
	if _, err := models.ParseSource(string(source)); err != nil {
		return nil, err
	}
	topic := SnapshotTopic(p.topicPrefix, source)

	var (
		mu     sync.Mutex
		closed bool
	)
	handler := func(_ string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		snap, err := models.DecodeSnapshot(source, payload, p.loc)
		if err != nil {
			sink.Fail(source, err)
			return err
		}
		sink.Snapshot(snap)
		return nil
	}

	if err := p.client.Subscribe(topic, p.qos, handler); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	p.logger.Info("Subscribed to snapshot topic", zap.String("topic", topic))

	var once sync.Once
	remove := func() {
		once.Do(func() {
			mu.Lock()
			closed = true
			mu.Unlock()
			if err := p.client.Unsubscribe(topic); err != nil {
				p.logger.Warn("Failed to unsubscribe from snapshot topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}
