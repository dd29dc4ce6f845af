package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-relay-service/internal/domain/registry"
)

// maxCloseReason is the room left for the reason in a close frame
// (125 byte control payload minus the 2 byte code).
const maxCloseReason = 123

var errSocketClosed = errors.New("ws: socket closed")

// Interface guard
var _ registry.Socket = (*socket)(nil)

// socket is the server half of an accepted WebSocket.
type socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	code   int
	reason string
}

func newSocket(conn *websocket.Conn, writeTimeout time.Duration) *socket {
	return &socket{conn: conn, writeTimeout: writeTimeout}
}

func (s *socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSocketClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close starts the closing handshake. The code and reason chosen here are
// what the read pump reports, whatever the peer answers.
func (s *socket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.code, s.reason = code, reason
	s.mu.Unlock()

	deadline := time.Now().Add(s.writeTimeout)
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, truncateReason(reason)), deadline)

	// A peer that never answers must not hold the pump forever.
	_ = s.conn.SetReadDeadline(deadline)
	return err
}

// localClose returns the code and reason of a server initiated close.
func (s *socket) localClose() (code int, reason string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.reason, s.closed
}

func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	// Cut on a rune boundary to keep the frame valid UTF-8.
	cut := maxCloseReason
	for cut > 0 && reason[cut]&0xC0 == 0x80 {
		cut--
	}
	return reason[:cut]
}
