package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Sink receives encoded event payloads. Enqueue reports false when the
// sink cannot accept the payload right now; the hub drops the event in
// that case, matching the best-effort delivery contract.
type Sink interface {
	Enqueue(payload []byte) bool
}

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub fans events out to sessions joined to named channels: per-pair
// conversation channels, per-user private channels, and the implicit
// global scope of every attached sink. Delivery is at-most-once per
// currently-joined sink with no retry and no replay; a sink that joins
// after emission never sees the event.
type Hub struct {
	mu         sync.RWMutex
	channels   map[string]map[Sink]struct{}
	membership map[Sink]map[string]struct{}
	sinks      map[Sink]struct{}

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels:   make(map[string]map[Sink]struct{}),
		membership: make(map[Sink]map[string]struct{}),
		sinks:      make(map[Sink]struct{}),
		logger:     logger,
	}
}

// Attach admits a sink into the global scope.
func (h *Hub) Attach(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[s] = struct{}{}
}

// Detach removes the sink from the global scope and from every channel
// it joined. Empty channels are deleted.
func (h *Hub) Detach(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, s)
	for channel := range h.membership[s] {
		h.leaveLocked(channel, s)
	}
	delete(h.membership, s)
}

// Join adds the sink to a channel. Membership is a set; joining twice
// is a no-op.
func (h *Hub) Join(channel string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[Sink]struct{})
		h.channels[channel] = set
	}
	set[s] = struct{}{}
	joined, ok := h.membership[s]
	if !ok {
		joined = make(map[string]struct{})
		h.membership[s] = joined
	}
	joined[channel] = struct{}{}
}

// Leave removes the sink from a channel.
func (h *Hub) Leave(channel string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(channel, s)
	if joined, ok := h.membership[s]; ok {
		delete(joined, channel)
	}
}

func (h *Hub) leaveLocked(channel string, s Sink) {
	set, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.channels, channel)
	}
}

// Broadcast emits an event to every sink joined to the channel.
func (h *Hub) Broadcast(channel, event string, data any) {
	h.BroadcastExcept(channel, nil, event, data)
}

// BroadcastExcept emits to the channel, skipping one sink. Used for
// typing indicators, which the sender must not receive back.
func (h *Hub) BroadcastExcept(channel string, except Sink, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		h.logEncodeFailure(event, err)
		return
	}
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.channels[channel]))
	for s := range h.channels[channel] {
		if s != except {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, event, payload)
}

// BroadcastAll emits an event to every attached sink regardless of
// channel membership. Presence transitions use this scope.
func (h *Hub) BroadcastAll(event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		h.logEncodeFailure(event, err)
		return
	}
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.sinks))
	for s := range h.sinks {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	h.deliver(targets, event, payload)
}

func (h *Hub) deliver(targets []Sink, event string, payload []byte) {
	for _, s := range targets {
		if !s.Enqueue(payload) && h.logger != nil {
			h.logger.Debug("event dropped under backpressure", "event", event)
		}
	}
}

func (h *Hub) logEncodeFailure(event string, err error) {
	if h.logger != nil {
		h.logger.Error("event encoding failed", "event", event, "error", err)
	}
}

// Encode marshals an event envelope.
func Encode(event string, data any) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: body})
}
