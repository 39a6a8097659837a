package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"stitchtalk/internal/domain/identity"
)

// session is one authenticated websocket connection bound to a user.
type session struct {
	conn *websocket.Conn
	user identity.Ref
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(conn *websocket.Conn, user identity.Ref, buffer int) *session {
	if buffer <= 0 {
		buffer = 16
	}
	return &session{
		conn: conn,
		user: user,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Enqueue hands a payload to the write loop. Reports false when the
// buffer is full or the session is closed; the event is then dropped
// rather than blocking the broadcaster. The send channel itself is
// never closed: a broadcaster may still hold this sink in a snapshot
// taken before teardown, and sending must stay safe for it.
func (s *session) Enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *session) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}
