package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"stitchtalk/internal/domain/identity"
)

var (
	ErrEmptyText          = errors.New("chat: text is required")
	ErrNotFound           = errors.New("chat: message not found")
	ErrStorageUnavailable = errors.New("chat: storage unavailable")
)

// Message is a single chat message. Immutable after persistence except
// for the Read flag, which flips false→true exactly once when the
// recipient acknowledges it.
type Message struct {
	ID             string
	ConversationID string
	Sender         identity.Ref
	Recipient      identity.Ref
	Text           string
	Read           bool
	CreatedAt      time.Time
}

// Store is the durable append-only message log.
type Store interface {
	// Append persists the message, assigning ID and CreatedAt, and
	// returns the stored record.
	Append(ctx context.Context, msg Message) (*Message, error)
	// ByID loads a single message. Returns ErrNotFound for unknown
	// ids.
	ByID(ctx context.Context, messageID string) (*Message, error)
	// MarkRead flips the read flag for a message id. The update is
	// atomic per message so concurrent markings from multiple tabs
	// converge. Returns ErrNotFound for unknown ids.
	MarkRead(ctx context.Context, messageID string) (*Message, error)
	// Conversation returns both directions of the pair ordered by
	// CreatedAt ascending, ties broken by insertion order.
	Conversation(ctx context.Context, userA, userB string) ([]Message, error)
	// CountUnread counts messages addressed to the user that are
	// still unread.
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// NewMessage validates endpoints and text before persistence. Text is
// trimmed; empty text is rejected so callers can drop it silently.
func NewMessage(sender, recipient identity.Ref, text string) (Message, error) {
	if err := ValidateUserID(sender.ID); err != nil {
		return Message{}, err
	}
	if err := ValidateUserID(recipient.ID); err != nil {
		return Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyText
	}
	room, err := RoomID(sender.ID, recipient.ID)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ConversationID: room,
		Sender:         sender,
		Recipient:      recipient,
		Text:           text,
	}, nil
}
