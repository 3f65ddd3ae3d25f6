package mapview

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqttcommon "fleet-tracker/common/mqtt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTClient subset of common/mqtt.Client used by MQTTSurface.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
}

// ClickMessage payload a browser map sends on <prefix>/click.
type ClickMessage struct {
	MarkerID string `json:"marker_id"`
}

// MQTTSurface mirrors the layer to a browser map over MQTT. Markers are retained
// on <prefix>/markers/<id> (empty payload clears one), the viewport on
// <prefix>/viewport; clicks arrive on <prefix>/click.
//
// Retained markers this surface did not draw are cleared as the broker replays
// them, so documents left behind by a surface torn down while disconnected go
// away when the next surface on the same prefix starts.
type MQTTSurface struct {
	client MQTTClient
	prefix string
	qos    byte
	logger *zap.Logger

	mu     sync.Mutex
	clicks map[MarkerHandle]func()
	closed bool
}

// NewMQTTSurface subscribes to the click topic.
func NewMQTTSurface(client MQTTClient, prefix string, qos byte, logger *zap.Logger) (*MQTTSurface, error) {
	s := &MQTTSurface{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
		logger: logger,
		clicks: make(map[MarkerHandle]func()),
	}
	if err := client.Subscribe(s.ClickTopic(), qos, s.handleClick); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.ClickTopic(), err)
	}
	if err := client.Subscribe(s.markersFilter(), qos, s.handleRetainedMarker); err != nil {
		_ = client.Unsubscribe(s.ClickTopic())
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.markersFilter(), err)
	}
	return s, nil
}

// ClickTopic topic the browser publishes marker clicks on.
func (s *MQTTSurface) ClickTopic() string { return s.prefix + "/click" }

// ViewportTopic retained viewport document.
func (s *MQTTSurface) ViewportTopic() string { return s.prefix + "/viewport" }

// MarkerTopic retained document of one marker.
func (s *MQTTSurface) MarkerTopic(h MarkerHandle) string {
	return s.prefix + "/markers/" + string(h)
}

func (s *MQTTSurface) markersFilter() string { return s.prefix + "/markers/+" }

// AddMarker implements Surface.
func (s *MQTTSurface) AddMarker(m Marker, onClick func()) MarkerHandle {
	h := MarkerHandle(uuid.NewString())
	s.mu.Lock()
	s.clicks[h] = onClick
	s.mu.Unlock()
	s.publishJSON(s.MarkerTopic(h), MarkerState{ID: h, Marker: m})
	return h
}

// UpdateMarker implements MarkerUpdater.
func (s *MQTTSurface) UpdateMarker(h MarkerHandle, m Marker) {
	s.publishJSON(s.MarkerTopic(h), MarkerState{ID: h, Marker: m})
}

// RemoveMarker implements Surface.
func (s *MQTTSurface) RemoveMarker(h MarkerHandle) {
	s.mu.Lock()
	delete(s.clicks, h)
	s.mu.Unlock()
	if err := s.client.Publish(s.MarkerTopic(h), s.qos, true, nil); err != nil {
		s.logger.Warn("Failed to clear marker", zap.String("marker_id", string(h)), zap.Error(err))
	}
}

// SetViewportBounds implements Surface.
func (s *MQTTSurface) SetViewportBounds(b BoundingBox, padding float64) {
	s.publishJSON(s.ViewportTopic(), Viewport{Mode: ViewportBounds, Bounds: b, Padding: padding})
}

// SetViewportCenter implements Surface.
func (s *MQTTSurface) SetViewportCenter(center LatLng, zoom int) {
	s.publishJSON(s.ViewportTopic(), Viewport{Mode: ViewportCenter, Center: center, Zoom: zoom})
}

// Ready implements Readiness.
func (s *MQTTSurface) Ready() bool {
	return s.client.IsConnected()
}

// Close stops listening for clicks and marker documents.
func (s *MQTTSurface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.clicks = make(map[MarkerHandle]func())
	s.mu.Unlock()
	return s.client.Unsubscribe(s.ClickTopic(), s.markersFilter())
}

func (s *MQTTSurface) handleClick(_ string, payload []byte) error {
	var msg ClickMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode click: %w", err)
	}
	s.mu.Lock()
	fn, ok := s.clicks[MarkerHandle(msg.MarkerID)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarker, msg.MarkerID)
	}
	if fn != nil {
		fn()
	}
	return nil
}

// handleRetainedMarker clears marker documents whose handle is not drawn here.
// Echoes of this surface's own documents carry a live handle and are ignored.
func (s *MQTTSurface) handleRetainedMarker(topic string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	h := MarkerHandle(strings.TrimPrefix(topic, s.prefix+"/markers/"))
	s.mu.Lock()
	_, live := s.clicks[h]
	closed := s.closed
	s.mu.Unlock()
	if live || closed {
		return nil
	}
	// publishing from inside a paho handler can block the inbound router
	go func() {
		if err := s.client.Publish(topic, s.qos, true, nil); err != nil {
			s.logger.Warn("Failed to clear stale marker", zap.String("topic", topic), zap.Error(err))
			return
		}
		s.logger.Debug("Cleared stale marker", zap.String("topic", topic))
	}()
	return nil
}

func (s *MQTTSurface) publishJSON(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode map document", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := s.client.Publish(topic, s.qos, true, data); err != nil {
		s.logger.Warn("Failed to publish map document", zap.String("topic", topic), zap.Error(err))
	}
}
