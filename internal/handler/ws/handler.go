package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/service"
)

type WSHandler struct {
	logger       *slog.Logger
	relay        service.Relayer
	upgrader     *websocket.Upgrader
	readLimit    int64
	writeTimeout time.Duration
}

func NewWSHandler(cfg *config.Config, logger *slog.Logger, relay service.Relayer) *WSHandler {
	return &WSHandler{
		logger:       logger.With(slog.String("component", "ws")),
		relay:        relay,
		upgrader:     newUpgrader(cfg.HTTP.AllowedOrigins),
		readLimit:    cfg.HTTP.ReadLimit,
		writeTimeout: cfg.HTTP.WriteTimeout,
	}
}

// Serve forwards r to the actor of sessionID. Once a socket was accepted it
// keeps pumping frames until the connection ends.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	up := &pendingUpgrade{
		w:            w,
		r:            r,
		upgrader:     h.upgrader,
		readLimit:    h.readLimit,
		writeTimeout: h.writeTimeout,
		logger:       h.logger,
	}

	// The connection outlives the handshake request.
	ctx := context.WithoutCancel(r.Context())

	resp := h.relay.Fetch(ctx, sessionID, r, up)
	switch {
	case up.responded:
		// gorilla already answered the failed upgrade.
	case up.sock != nil:
		h.pump(ctx, sessionID, up.sock)
	default:
		writeResponse(w, resp)
	}
}

func writeResponse(w http.ResponseWriter, resp registry.Response) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

// pump reads frames until the connection ends and reports the closure once.
func (h *WSHandler) pump(ctx context.Context, sessionID string, sock *socket) {
	l := h.logger.With(slog.String("session_id", sessionID))
	defer sock.conn.Close()

	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			c := closeStatus(sock, err)
			l.Debug("[WS] read loop finished", slog.Int("code", c.Code), slog.Bool("local", c.Local), slog.Any("err", err))
			h.relay.Closed(ctx, sessionID, sock, c)
			return
		}
		h.relay.Message(ctx, sessionID, sock, data)
	}
}

// closeStatus prefers the locally chosen close over what the peer reported.
func closeStatus(sock *socket, err error) registry.Closure {
	if code, reason, ok := sock.localClose(); ok {
		return registry.Closure{Code: code, Reason: reason, Clean: true, Local: true}
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return registry.Closure{Code: ce.Code, Reason: ce.Text, Clean: ce.Code != websocket.CloseAbnormalClosure}
	}
	return registry.Closure{Code: websocket.CloseAbnormalClosure}
}
