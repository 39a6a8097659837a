package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	chatapp "stitchtalk/internal/app/chat"
	"stitchtalk/internal/app/dto"
	"stitchtalk/internal/app/presence"
	domainchat "stitchtalk/internal/domain/chat"
	"stitchtalk/internal/domain/identity"
)

// Client→server event names.
const (
	eventJoinConversation = "joinConversation"
	eventSendMessage      = "sendMessage"
	eventMarkRead         = "markRead"
	eventTyping           = "typing"
	eventStopTyping       = "stopTyping"
	eventFetchHistory     = "fetchHistory"

	eventError = "error"
)

// TokenVerifier validates a bearer credential and yields the user it
// belongs to.
type TokenVerifier interface {
	Verify(token string) (identity.Ref, error)
}

// Config bounds the per-connection resources.
type Config struct {
	SendBuffer       int
	ReadLimit        int64
	HandshakeTimeout time.Duration
}

// Gateway runs the protocol state machine for realtime connections:
// authenticate, join channels, dispatch events, clean up on disconnect.
type Gateway struct {
	Hub      *Hub
	Presence *presence.Registry
	Chat     *chatapp.Service
	Verifier TokenVerifier
	Logger   *slog.Logger

	cfg      Config
	baseCtx  context.Context
	upgrader websocket.Upgrader
	handlers map[string]func(*session, json.RawMessage)
}

// NewGateway builds the gateway and registers one top-level handler per
// client event. Handlers are bound exactly once here; nothing registers
// handlers inside other handlers.
func NewGateway(baseCtx context.Context, hub *Hub, registry *presence.Registry, svc *chatapp.Service, verifier TokenVerifier, logger *slog.Logger, cfg Config) *Gateway {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 * 1024
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	g := &Gateway{
		Hub:      hub,
		Presence: registry,
		Chat:     svc,
		Verifier: verifier,
		Logger:   logger,
		cfg:      cfg,
		baseCtx:  baseCtx,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
	g.handlers = map[string]func(*session, json.RawMessage){
		eventJoinConversation: g.handleJoinConversation,
		eventSendMessage:      g.handleSendMessage,
		eventMarkRead:         g.handleMarkRead,
		eventTyping:           g.handleTyping,
		eventStopTyping:       g.handleStopTyping,
		eventFetchHistory:     g.handleFetchHistory,
	}
	return g
}

// Handle upgrades an authenticated request to a websocket session.
// Authentication failure is fatal to the attempt: the connection is
// rejected before any state is created.
func (g *Gateway) Handle(c *gin.Context) {
	token := extractToken(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return
	}
	user, err := g.Verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := newSession(conn, user, g.cfg.SendBuffer)
	g.Hub.Attach(sess)
	g.Hub.Join(user.ID, sess) // private channel for direct delivery
	g.Presence.Register(user, sess)
	if g.Logger != nil {
		g.Logger.Info("session opened", "user_id", user.ID, "kind", user.Kind)
	}

	go sess.writeLoop()
	g.readLoop(sess)

	g.Presence.Unregister(user, sess)
	g.Hub.Detach(sess)
	sess.close()
	if g.Logger != nil {
		g.Logger.Info("session closed", "user_id", user.ID)
	}
}

// readLoop processes events in arrival order for one connection. A
// handler failure never terminates the session; only a read error
// (disconnect, protocol violation) does.
func (g *Gateway) readLoop(sess *session) {
	sess.conn.SetReadLimit(g.cfg.ReadLimit)
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.logDebug("malformed frame dropped", "user_id", sess.user.ID)
			continue
		}
		handler, ok := g.handlers[env.Event]
		if !ok {
			g.logDebug("unknown event dropped", "event", env.Event, "user_id", sess.user.ID)
			continue
		}
		handler(sess, env.Data)
	}
}

func (g *Gateway) handleJoinConversation(sess *session, data json.RawMessage) {
	var req struct {
		To string `json:"to"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(sess, eventJoinConversation, "invalid payload")
		return
	}
	room, err := domainchat.RoomID(sess.user.ID, req.To)
	if err != nil {
		g.sendError(sess, eventJoinConversation, "invalid user id")
		return
	}
	g.Hub.Join(room, sess)
}

func (g *Gateway) handleSendMessage(sess *session, data json.RawMessage) {
	var req struct {
		To     string `json:"to"`
		ToKind string `json:"toKind"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(sess, eventSendMessage, "invalid payload")
		return
	}
	kind, err := identity.ParseKind(req.ToKind)
	if err != nil {
		g.sendError(sess, eventSendMessage, "invalid recipient kind")
		return
	}
	recipient, err := identity.NewRef(req.To, kind)
	if err != nil {
		g.sendError(sess, eventSendMessage, "invalid recipient")
		return
	}
	_, err = g.Chat.Send(g.baseCtx, sess.user, recipient, req.Text)
	switch {
	case err == nil:
	case errors.Is(err, domainchat.ErrEmptyText):
		// Empty messages are dropped without a reply.
		g.logDebug("empty message dropped", "user_id", sess.user.ID)
	case errors.Is(err, domainchat.ErrInvalidUserID):
		g.sendError(sess, eventSendMessage, "invalid recipient")
	default:
		g.sendError(sess, eventSendMessage, "message not delivered")
	}
}

func (g *Gateway) handleMarkRead(sess *session, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		g.sendError(sess, eventMarkRead, "invalid payload")
		return
	}
	if err := g.Chat.MarkRead(g.baseCtx, sess.user.ID, req.MessageID); err != nil {
		g.sendError(sess, eventMarkRead, "read state not updated")
	}
}

func (g *Gateway) handleTyping(sess *session, data json.RawMessage) {
	g.relayTyping(sess, data, eventTyping)
}

func (g *Gateway) handleStopTyping(sess *session, data json.RawMessage) {
	g.relayTyping(sess, data, eventStopTyping)
}

// relayTyping forwards a transient typing-state event to the other
// sessions in the conversation channel. Fire-and-forget: no
// persistence, droppable under backpressure.
func (g *Gateway) relayTyping(sess *session, data json.RawMessage, event string) {
	var req struct {
		To string `json:"to"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	room, err := domainchat.RoomID(sess.user.ID, req.To)
	if err != nil {
		return
	}
	g.Hub.BroadcastExcept(room, sess, event, dto.TypingEvent{From: sess.user.ID})
}

func (g *Gateway) handleFetchHistory(sess *session, data json.RawMessage) {
	var req struct {
		With string `json:"with"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(sess, eventFetchHistory, "invalid payload")
		return
	}
	history, err := g.Chat.History(g.baseCtx, sess.user.ID, req.With)
	if err != nil {
		if errors.Is(err, domainchat.ErrInvalidUserID) {
			g.sendError(sess, eventFetchHistory, "invalid user id")
			return
		}
		g.sendError(sess, eventFetchHistory, "history unavailable")
		return
	}
	g.sendTo(sess, chatapp.EventChatHistory, history)
}

// sendTo delivers an event to a single session outside any channel.
func (g *Gateway) sendTo(sess *session, event string, payload any) {
	encoded, err := Encode(event, payload)
	if err != nil {
		g.logDebug("event encoding failed", "event", event, "error", err)
		return
	}
	if !sess.Enqueue(encoded) {
		g.logDebug("event dropped under backpressure", "event", event, "user_id", sess.user.ID)
	}
}

func (g *Gateway) sendError(sess *session, op, message string) {
	g.sendTo(sess, eventError, dto.ErrorEvent{Op: op, Message: message})
}

func (g *Gateway) logDebug(msg string, attrs ...any) {
	if g.Logger != nil {
		g.Logger.Debug(msg, attrs...)
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return r.URL.Query().Get("token")
}
