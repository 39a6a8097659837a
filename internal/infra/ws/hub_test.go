package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	full     bool
}

func (f *fakeSink) Enqueue(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.payloads = append(f.payloads, payload)
	return true
}

func (f *fakeSink) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.payloads))
	for _, p := range f.payloads {
		var env Envelope
		require.NoError(t, json.Unmarshal(p, &env))
		out = append(out, env.Event)
	}
	return out
}

func TestHub_BroadcastReachesJoinedSinksOnly(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	a, b, c := &fakeSink{}, &fakeSink{}, &fakeSink{}
	hub.Attach(a)
	hub.Attach(b)
	hub.Attach(c)
	hub.Join("room-1", a)
	hub.Join("room-1", b)

	hub.Broadcast("room-1", "receiveMessage", map[string]string{"text": "hi"})

	req.Equal([]string{"receiveMessage"}, a.events(t))
	req.Equal([]string{"receiveMessage"}, b.events(t))
	req.Empty(c.events(t))
}

func TestHub_BroadcastExceptSkipsSender(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	sender, peer := &fakeSink{}, &fakeSink{}
	hub.Attach(sender)
	hub.Attach(peer)
	hub.Join("room-1", sender)
	hub.Join("room-1", peer)

	hub.BroadcastExcept("room-1", sender, "typing", map[string]string{"from": "u1"})

	req.Empty(sender.events(t))
	req.Equal([]string{"typing"}, peer.events(t))
}

func TestHub_BroadcastAllIgnoresMembership(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	joined, loner := &fakeSink{}, &fakeSink{}
	hub.Attach(joined)
	hub.Attach(loner)
	hub.Join("room-1", joined)

	hub.BroadcastAll("userOnline", map[string]string{"userId": "u1"})

	req.Equal([]string{"userOnline"}, joined.events(t))
	req.Equal([]string{"userOnline"}, loner.events(t))
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	s := &fakeSink{}
	hub.Attach(s)
	hub.Join("room-1", s)
	hub.Leave("room-1", s)

	hub.Broadcast("room-1", "receiveMessage", nil)
	req.Empty(s.events(t))
}

func TestHub_DetachRemovesAllMemberships(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	s := &fakeSink{}
	hub.Attach(s)
	hub.Join("room-1", s)
	hub.Join("u1", s)

	hub.Detach(s)

	hub.Broadcast("room-1", "receiveMessage", nil)
	hub.Broadcast("u1", "chatHistory", nil)
	hub.BroadcastAll("userOffline", nil)
	req.Empty(s.events(t))
}

func TestHub_FullSinkDropsWithoutBlocking(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	healthy, congested := &fakeSink{}, &fakeSink{full: true}
	hub.Attach(healthy)
	hub.Attach(congested)
	hub.Join("room-1", healthy)
	hub.Join("room-1", congested)

	hub.Broadcast("room-1", "receiveMessage", map[string]string{"text": "hi"})

	// The congested sink loses the event; the healthy one still gets it.
	req.Equal([]string{"receiveMessage"}, healthy.events(t))
	req.Empty(congested.events(t))
}

func TestHub_JoinTwiceDeliversOnce(t *testing.T) {
	req := require.New(t)
	hub := NewHub(nil)
	s := &fakeSink{}
	hub.Attach(s)
	hub.Join("room-1", s)
	hub.Join("room-1", s)

	hub.Broadcast("room-1", "receiveMessage", nil)
	req.Len(s.events(t), 1)
}

func TestEncode_WrapsEnvelope(t *testing.T) {
	req := require.New(t)
	payload, err := Encode("typing", map[string]string{"from": "u1"})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(payload, &env))
	req.Equal("typing", env.Event)
	req.JSONEq(`{"from":"u1"}`, string(env.Data))
}
