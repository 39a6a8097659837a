package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// globalKey partitions events that carry no channel (presence scope).
const globalKey = "*"

// EventMirror publishes a copy of every emitted chat event to a Kafka
// topic, keyed by channel. In-process delivery stays authoritative; the
// mirror exists so a multi-node deployment can fan out from the broker
// instead of process memory. Best-effort: publish failures are logged
// and never reach the emitting caller.
type EventMirror struct {
	Producer *Producer
	Topic    string
	Logger   *slog.Logger
}

type mirroredEvent struct {
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	At      time.Time       `json:"at"`
}

func (m *EventMirror) Publish(ctx context.Context, channel, event string, data any) {
	if m == nil || m.Producer == nil {
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		m.logFailure(event, err)
		return
	}
	payload, err := json.Marshal(mirroredEvent{
		Channel: channel,
		Event:   event,
		Data:    body,
		At:      time.Now().UTC(),
	})
	if err != nil {
		m.logFailure(event, err)
		return
	}
	key := channel
	if key == "" {
		key = globalKey
	}
	if err := m.Producer.Publish(ctx, m.Topic, key, payload); err != nil {
		m.logFailure(event, err)
	}
}

// BroadcastAll lets the mirror sit behind the presence broadcaster
// contract alongside the hub.
func (m *EventMirror) BroadcastAll(event string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.Publish(ctx, "", event, data)
}

func (m *EventMirror) logFailure(event string, err error) {
	if m.Logger != nil {
		m.Logger.Warn("event mirror publish failed", "event", event, "error", err)
	}
}
