package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "stitchtalk/internal/domain/chat"
)

// MessageStore keeps the message log in memory. Not suitable for
// production; used for local runs and tests.
type MessageStore struct {
	mu   sync.RWMutex
	byID map[string]*record
	log  []*record
	seq  int64
}

type record struct {
	msg domainchat.Message
	seq int64
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[string]*record)}
}

func (s *MessageStore) Append(ctx context.Context, msg domainchat.Message) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	msg.Read = false
	rec := &record{msg: msg, seq: s.seq}
	s.byID[msg.ID] = rec
	s.log = append(s.log, rec)
	stored := rec.msg
	return &stored, nil
}

func (s *MessageStore) ByID(ctx context.Context, messageID string) (*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[messageID]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	msg := rec.msg
	return &msg, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, messageID string) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[messageID]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	rec.msg.Read = true
	msg := rec.msg
	return &msg, nil
}

func (s *MessageStore) Conversation(ctx context.Context, userA, userB string) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]*record, 0)
	for _, rec := range s.log {
		sender, recipient := rec.msg.Sender.ID, rec.msg.Recipient.ID
		if (sender == userA && recipient == userB) || (sender == userB && recipient == userA) {
			matches = append(matches, rec)
		}
	}
	// Oldest first; insertion order breaks timestamp ties.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].msg.CreatedAt.Equal(matches[j].msg.CreatedAt) {
			return matches[i].seq < matches[j].seq
		}
		return matches[i].msg.CreatedAt.Before(matches[j].msg.CreatedAt)
	})
	out := make([]domainchat.Message, 0, len(matches))
	for _, rec := range matches {
		out = append(out, rec.msg)
	}
	return out, nil
}

func (s *MessageStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, rec := range s.log {
		if rec.msg.Recipient.ID == userID && !rec.msg.Read {
			count++
		}
	}
	return count, nil
}

var _ domainchat.Store = (*MessageStore)(nil)
