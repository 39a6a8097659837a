package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"stitchtalk/internal/domain/identity"
)

func ref(id, kind string) identity.Ref {
	return identity.Ref{ID: id, Kind: identity.Kind(kind)}
}

func TestRoomID_Commutative(t *testing.T) {
	req := require.New(t)

	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{uuid.NewString(), uuid.NewString()},
		{"0a1b", "ZZZ"},
	}
	for _, pair := range pairs {
		forward, err := RoomID(pair[0], pair[1])
		req.NoError(err)
		backward, err := RoomID(pair[1], pair[0])
		req.NoError(err)
		req.Equal(forward, backward)
	}
}

func TestRoomID_Stable(t *testing.T) {
	req := require.New(t)

	room, err := RoomID("u2", "u1")
	req.NoError(err)
	req.Equal("u1_u2", room)
}

func TestRoomID_RejectsInvalidIDs(t *testing.T) {
	req := require.New(t)

	invalid := []string{"", "  ", "a_b", "a b", "a/b", " u1", "u1 "}
	for _, id := range invalid {
		_, err := RoomID(id, "u2")
		req.ErrorIs(err, ErrInvalidUserID, "id %q", id)
		_, err = RoomID("u2", id)
		req.ErrorIs(err, ErrInvalidUserID, "id %q", id)
	}
}

func TestNewMessage_TrimsAndValidates(t *testing.T) {
	req := require.New(t)

	sender := ref("u1", "creator")
	recipient := ref("u2", "customer")

	msg, err := NewMessage(sender, recipient, "  hello  ")
	req.NoError(err)
	req.Equal("hello", msg.Text)
	req.Equal("u1_u2", msg.ConversationID)
	req.False(msg.Read)

	_, err = NewMessage(sender, recipient, "   ")
	req.ErrorIs(err, ErrEmptyText)

	_, err = NewMessage(ref("", "creator"), recipient, "hi")
	req.ErrorIs(err, ErrInvalidUserID)
}
