package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	chatapp "stitchtalk/internal/app/chat"
	"stitchtalk/internal/app/presence"
	"stitchtalk/internal/domain/identity"
	"stitchtalk/internal/infra/storage/memory"
)

func newTestGateway(t *testing.T) (*Gateway, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	directory := memory.NewDirectory()
	svc := &chatapp.Service{
		Store:     memory.NewMessageStore(),
		Directory: directory,
		Events:    hub,
	}
	registry := presence.NewRegistry(directory, hub, nil)
	return NewGateway(context.Background(), hub, registry, svc, nil, nil, Config{SendBuffer: 8}), hub
}

func attachSession(hub *Hub, userID string, kind identity.Kind) *session {
	sess := newSession(nil, identity.Ref{ID: userID, Kind: kind}, 8)
	hub.Attach(sess)
	hub.Join(userID, sess)
	return sess
}

func drainEvents(t *testing.T, sess *session) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case payload := <-sess.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(payload, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestGateway_HandlersRegisteredOnce(t *testing.T) {
	req := require.New(t)
	g, _ := newTestGateway(t)
	for _, event := range []string{
		eventJoinConversation, eventSendMessage, eventMarkRead,
		eventTyping, eventStopTyping, eventFetchHistory,
	} {
		req.Contains(g.handlers, event)
	}
	req.NotContains(g.handlers, eventError)
}

func TestGateway_SendMessageReachesBothParticipants(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)
	bob := attachSession(hub, "bob", identity.KindCreator)

	g.handleJoinConversation(alice, raw(t, map[string]string{"to": "bob"}))
	g.handleJoinConversation(bob, raw(t, map[string]string{"to": "alice"}))

	g.handleSendMessage(alice, raw(t, map[string]string{
		"to": "bob", "toKind": "creator", "text": "is the suit ready?",
	}))

	// The persisted record fans out to the whole conversation, sender
	// included.
	for _, sess := range []*session{alice, bob} {
		events := drainEvents(t, sess)
		req.Len(events, 1)
		req.Equal(chatapp.EventReceiveMessage, events[0].Event)
	}
}

func TestGateway_EmptyMessageIsDroppedSilently(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)
	g.handleJoinConversation(alice, raw(t, map[string]string{"to": "bob"}))

	g.handleSendMessage(alice, raw(t, map[string]string{
		"to": "bob", "toKind": "creator", "text": "   ",
	}))

	req.Empty(drainEvents(t, alice))
}

func TestGateway_SendMessageInvalidRecipientKind(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)

	g.handleSendMessage(alice, raw(t, map[string]string{
		"to": "bob", "toKind": "robot", "text": "hello",
	}))

	events := drainEvents(t, alice)
	req.Len(events, 1)
	req.Equal(eventError, events[0].Event)
}

func TestGateway_TypingExcludesSender(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)
	bob := attachSession(hub, "bob", identity.KindCreator)
	g.handleJoinConversation(alice, raw(t, map[string]string{"to": "bob"}))
	g.handleJoinConversation(bob, raw(t, map[string]string{"to": "alice"}))

	g.handleTyping(alice, raw(t, map[string]string{"to": "bob"}))

	req.Empty(drainEvents(t, alice))
	events := drainEvents(t, bob)
	req.Len(events, 1)
	req.Equal(eventTyping, events[0].Event)

	g.handleStopTyping(alice, raw(t, map[string]string{"to": "bob"}))
	events = drainEvents(t, bob)
	req.Len(events, 1)
	req.Equal(eventStopTyping, events[0].Event)
}

func TestGateway_FetchHistoryRepliesToRequesterOnly(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)
	bob := attachSession(hub, "bob", identity.KindCreator)
	g.handleJoinConversation(alice, raw(t, map[string]string{"to": "bob"}))
	g.handleJoinConversation(bob, raw(t, map[string]string{"to": "alice"}))

	g.handleSendMessage(alice, raw(t, map[string]string{
		"to": "bob", "toKind": "creator", "text": "first",
	}))
	drainEvents(t, alice)
	drainEvents(t, bob)

	g.handleFetchHistory(bob, raw(t, map[string]string{"with": "alice"}))

	req.Empty(drainEvents(t, alice))
	events := drainEvents(t, bob)
	req.Len(events, 1)
	req.Equal(chatapp.EventChatHistory, events[0].Event)
}

func TestGateway_FetchHistoryInvalidPeer(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)

	g.handleFetchHistory(alice, raw(t, map[string]string{"with": "not valid!"}))

	events := drainEvents(t, alice)
	req.Len(events, 1)
	req.Equal(eventError, events[0].Event)
}

func TestGateway_MarkReadBroadcastsToConversation(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)
	bob := attachSession(hub, "bob", identity.KindCreator)
	g.handleJoinConversation(alice, raw(t, map[string]string{"to": "bob"}))
	g.handleJoinConversation(bob, raw(t, map[string]string{"to": "alice"}))

	g.handleSendMessage(alice, raw(t, map[string]string{
		"to": "bob", "toKind": "creator", "text": "done?",
	}))
	sent := drainEvents(t, bob)
	req.Len(sent, 1)
	drainEvents(t, alice)

	var delivered struct {
		ID string `json:"id"`
	}
	req.NoError(json.Unmarshal(sent[0].Data, &delivered))
	req.NotEmpty(delivered.ID)

	g.handleMarkRead(bob, raw(t, map[string]string{"messageId": delivered.ID}))

	// Read updates reach the whole room, the reader included.
	for _, sess := range []*session{alice, bob} {
		events := drainEvents(t, sess)
		req.Len(events, 1)
		req.Equal(chatapp.EventMessageReadUpdate, events[0].Event)
	}
}

func TestGateway_MarkReadInvalidPayload(t *testing.T) {
	req := require.New(t)
	g, hub := newTestGateway(t)
	alice := attachSession(hub, "alice", identity.KindCustomer)

	g.handleMarkRead(alice, raw(t, map[string]string{}))

	events := drainEvents(t, alice)
	req.Len(events, 1)
	req.Equal(eventError, events[0].Event)
}

func TestExtractToken(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	req.Equal("abc123", extractToken(r))

	r = httptest.NewRequest("GET", "/ws?token=query456", nil)
	req.Equal("query456", extractToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	req.Equal("", extractToken(r))
}
