package chat

import (
	"context"
	"errors"
	"log/slog"

	"stitchtalk/internal/app/dto"
	domainchat "stitchtalk/internal/domain/chat"
	"stitchtalk/internal/domain/identity"
)

const (
	EventReceiveMessage    = "receiveMessage"
	EventMessageReadUpdate = "messageReadUpdate"
	EventChatHistory       = "chatHistory"
)

// Broadcaster delivers an event to every session joined to a channel at
// emission time. Delivery is at-most-once and best-effort.
type Broadcaster interface {
	Broadcast(channel, event string, data any)
}

// Mirror publishes a copy of emitted events to an external broker so a
// future multi-node deployment can fan out beyond this process.
type Mirror interface {
	Publish(ctx context.Context, channel, event string, data any)
}

// Service orchestrates message persistence, display enrichment and
// conversation broadcast.
type Service struct {
	Store     domainchat.Store
	Directory identity.Directory
	Events    Broadcaster
	Mirror    Mirror
	Logger    *slog.Logger
}

// Send validates, persists and broadcasts a message. The persisted,
// enriched record is the single source of truth delivered to every
// joined session, the sender's own included; there is no optimistic
// local echo. Returns the enriched record.
func (s *Service) Send(ctx context.Context, sender, recipient identity.Ref, text string) (*dto.ChatMessage, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	msg, err := domainchat.NewMessage(sender, recipient, text)
	if err != nil {
		return nil, err
	}
	stored, err := s.Store.Append(ctx, msg)
	if err != nil {
		s.logError("message append failed", err, "sender_id", sender.ID, "recipient_id", recipient.ID)
		return nil, err
	}
	enriched := s.enrich(ctx, *stored, newProfileCache())
	s.Events.Broadcast(stored.ConversationID, EventReceiveMessage, enriched)
	s.mirror(ctx, stored.ConversationID, EventReceiveMessage, enriched)
	return &enriched, nil
}

// MarkRead flips the read flag when, and only when, the caller is the
// message recipient and the flag is still unset. Unknown ids and
// foreign messages are silent no-ops; read state is not security
// sensitive, so availability wins over strictness here. A second call
// for the same message does not re-emit the read update.
func (s *Service) MarkRead(ctx context.Context, readerID, messageID string) error {
	if err := s.ensureDependencies(); err != nil {
		return err
	}
	msg, err := s.Store.ByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domainchat.ErrNotFound) {
			s.logDebug("mark-read for unknown message", "message_id", messageID, "reader_id", readerID)
			return nil
		}
		return err
	}
	if msg.Recipient.ID != readerID {
		s.logDebug("mark-read by non-recipient ignored", "message_id", messageID, "reader_id", readerID)
		return nil
	}
	if msg.Read {
		return nil
	}
	updated, err := s.Store.MarkRead(ctx, messageID)
	if err != nil {
		if errors.Is(err, domainchat.ErrNotFound) {
			return nil
		}
		return err
	}
	update := dto.ReadUpdate{MessageID: updated.ID, Read: updated.Read}
	s.Events.Broadcast(updated.ConversationID, EventMessageReadUpdate, update)
	s.mirror(ctx, updated.ConversationID, EventMessageReadUpdate, update)
	return nil
}

// History returns both directions of the pair ordered oldest first,
// enriched with display identities. A pair with no shared messages
// yields an empty slice, not an error.
func (s *Service) History(ctx context.Context, meID, otherID string) ([]dto.ChatMessage, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if err := domainchat.ValidateUserID(otherID); err != nil {
		return nil, err
	}
	records, err := s.Store.Conversation(ctx, meID, otherID)
	if err != nil {
		return nil, err
	}
	cache := newProfileCache()
	history := make([]dto.ChatMessage, 0, len(records))
	for _, rec := range records {
		history = append(history, s.enrich(ctx, rec, cache))
	}
	return history, nil
}

// Unread counts messages addressed to the user that are still unread.
func (s *Service) Unread(ctx context.Context, userID string) (int64, error) {
	if err := s.ensureDependencies(); err != nil {
		return 0, err
	}
	if err := domainchat.ValidateUserID(userID); err != nil {
		return 0, err
	}
	return s.Store.CountUnread(ctx, userID)
}

type profileCache map[identity.Ref]*dto.Participant

func newProfileCache() profileCache {
	return make(profileCache)
}

func (s *Service) enrich(ctx context.Context, msg domainchat.Message, cache profileCache) dto.ChatMessage {
	out := dto.ChatMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.Sender.ID,
		SenderKind:     string(msg.Sender.Kind),
		RecipientID:    msg.Recipient.ID,
		RecipientKind:  string(msg.Recipient.Kind),
		Text:           msg.Text,
		Read:           msg.Read,
		CreatedAt:      msg.CreatedAt,
	}
	out.Sender = s.participant(ctx, msg.Sender, cache)
	out.Recipient = s.participant(ctx, msg.Recipient, cache)
	return out
}

func (s *Service) participant(ctx context.Context, ref identity.Ref, cache profileCache) *dto.Participant {
	if p, ok := cache[ref]; ok {
		return p
	}
	profile, err := s.Directory.Resolve(ctx, ref)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			s.logError("profile resolution failed", err, "user_id", ref.ID, "kind", ref.Kind)
		}
		cache[ref] = nil
		return nil
	}
	p := &dto.Participant{
		ID:     profile.ID,
		Kind:   string(profile.Kind),
		Name:   profile.Name,
		Role:   profile.Role,
		Avatar: profile.AvatarURL,
	}
	cache[ref] = p
	return p
}

func (s *Service) mirror(ctx context.Context, channel, event string, data any) {
	if s.Mirror == nil {
		return
	}
	s.Mirror.Publish(ctx, channel, event, data)
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Store == nil:
		return errors.New("chat: message store required")
	case s.Directory == nil:
		return errors.New("chat: identity directory required")
	case s.Events == nil:
		return errors.New("chat: broadcaster required")
	default:
		return nil
	}
}

func (s *Service) logError(msg string, err error, attrs ...any) {
	if s.Logger != nil {
		s.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

func (s *Service) logDebug(msg string, attrs ...any) {
	if s.Logger != nil {
		s.Logger.Debug(msg, attrs...)
	}
}
