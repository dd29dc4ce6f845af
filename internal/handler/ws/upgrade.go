package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-relay-service/internal/domain/registry"
)

// Interface guard
var _ registry.Upgrade = (*pendingUpgrade)(nil)

// pendingUpgrade defers the protocol switch until the actor authorised the
// peer. A rejected upgrade never reaches the wire as a WebSocket: the client
// gets the plain HTTP failure status instead.
type pendingUpgrade struct {
	w            http.ResponseWriter
	r            *http.Request
	upgrader     *websocket.Upgrader
	readLimit    int64
	writeTimeout time.Duration
	logger       *slog.Logger

	sock *socket
	// responded is set once gorilla wrote its own answer to the request.
	responded bool
}

func (u *pendingUpgrade) Accept() (registry.Socket, error) {
	conn, err := u.upgrader.Upgrade(u.w, u.r, nil)
	if err != nil {
		u.responded = true
		return nil, err
	}
	if u.readLimit > 0 {
		conn.SetReadLimit(u.readLimit)
	}
	u.sock = newSocket(conn, u.writeTimeout)
	return u.sock, nil
}

func (u *pendingUpgrade) Reject(code int, reason string) {
	u.logger.Debug("[WS] upgrade rejected",
		slog.Int("close_code", code),
		slog.String("reason", reason),
	)
}

// newUpgrader creates a WebSocket upgrader with origin checking.
// An empty list or "*" admits any origin.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin.
				return true
			}
			return originSet[origin]
		},
	}
}
