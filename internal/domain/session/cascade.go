package session

import (
	"context"
	"log/slog"

	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
)

// OnClose reacts to a closed connection: it forgets the socket and
// cascades closures so a session never keeps a controller without
// satellites or satellites without a controller.
func (a *Actor) OnClose(ctx context.Context, sock registry.Socket, c registry.Closure) {
	peer := model.ParseTags(a.sockets.Tags(sock))
	a.sockets.Remove(sock)

	l := a.logger.With(slog.String("peer", peer.String()))
	l.Info("[SESSION] connection closed",
		slog.Int("code", c.Code),
		slog.String("reason", c.Reason),
		slog.Bool("clean", c.Clean),
		slog.Bool("local", c.Local),
	)

	// [SENTINEL] The session-wide close already closed everybody. A peer
	// cannot claim it by quoting the reason.
	if c.Local && model.IsClosedBy(c.Reason) {
		return
	}

	switch peer.Role {
	case model.RoleController:
		if n := a.closeRole(model.RoleSatellite, model.ControllerLeftReason(peer)); n > 0 {
			l.Info("[SESSION] satellites closed after controller left", slog.Int("closed", n))
		}

	case model.RoleSatellite:
		if len(a.sockets.List(model.RoleTag(model.RoleSatellite))) > 0 {
			return
		}
		if n := a.closeRole(model.RoleController, model.LastSatelliteLeftReason(peer)); n > 0 {
			l.Info("[SESSION] controller closed after last satellite left", slog.Int("closed", n))
		}
	}
}
