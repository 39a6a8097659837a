package dto

import "time"

// Participant is the display projection attached to enriched messages.
type Participant struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// ChatMessage is the wire form of a persisted message, enriched with
// resolved display identities when available.
type ChatMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	SenderKind     string       `json:"senderKind"`
	RecipientID    string       `json:"recipientId"`
	RecipientKind  string       `json:"recipientKind"`
	Text           string       `json:"text"`
	Read           bool         `json:"read"`
	CreatedAt      time.Time    `json:"createdAt"`
	Sender         *Participant `json:"sender,omitempty"`
	Recipient      *Participant `json:"recipient,omitempty"`
}

// ReadUpdate notifies a conversation that a message was acknowledged.
type ReadUpdate struct {
	MessageID string `json:"messageId"`
	Read      bool   `json:"read"`
}

// TypingEvent is the transient typing indicator, addressed by sender.
type TypingEvent struct {
	From string `json:"from"`
}

// PresenceEvent announces an online/offline transition.
type PresenceEvent struct {
	UserID string `json:"userId"`
}

// ErrorEvent reports a best-effort failure to the originating
// connection only.
type ErrorEvent struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// DirectoryEntry is one row of the merged user listing.
type DirectoryEntry struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	Avatar   string     `json:"avatar,omitempty"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
