package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
)

var errPayloadNotObject = errors.New("payload must be a JSON object")

// OnMessage dispatches one inbound frame. Nothing is ever sent back for
// malformed input or an unknown recipient.
func (a *Actor) OnMessage(ctx context.Context, sock registry.Socket, data []byte) {
	sender := model.ParseTags(a.sockets.Tags(sock))
	l := a.logger.With(slog.String("peer", sender.String()))

	var msg model.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		l.Warn("[ROUTER] malformed frame dropped", slog.Any("err", err))
		return
	}

	// 1. [HEARTBEAT]
	if msg.Type == model.TypePing {
		if err := a.send(sock, model.Pong{Type: model.TypePong}); err != nil {
			l.Debug("[ROUTER] pong failed", slog.Any("err", err))
		}
		return
	}

	// 2-3. [COMMANDS]
	switch msg.Command() {
	case model.CommandClose:
		reason := model.ClosedByReason(sender)
		closed := a.closeAll(reason)
		l.Info("[SESSION] closed on request", slog.Int("closed", closed))
		a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.SessionClosed, &sender, reason))
		return

	case model.CommandGetParticipants:
		list := model.ParticipantsList{Type: model.TypeParticipantsList, Participants: a.Participants()}
		if err := a.send(sock, list); err != nil {
			l.Debug("[ROUTER] participants reply failed", slog.Any("err", err))
		}
		return
	}

	// 4. [RELAY]
	a.relay(sock, sender, &msg, l)
}

func (a *Actor) relay(sock registry.Socket, sender model.Participant, msg *model.Inbound, l *slog.Logger) {
	if msg.To == nil || len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		l.Warn("[ROUTER] relay message requires 'to' and 'payload', dropped")
		return
	}

	frame, err := withSender(msg.Payload, sender)
	if err != nil {
		l.Warn("[ROUTER] relay message dropped", slog.Any("err", err))
		return
	}

	if msg.To.Private() {
		a.deliverPrivate(frame, msg.To, l)
		return
	}
	a.deliverPublic(sock, frame, msg.To.Role, l)
}

// deliverPrivate sends frame to the single connection matching both role and
// id. Ids alone are ambiguous: controller 0 and satellite 0 coexist.
func (a *Actor) deliverPrivate(frame []byte, to *model.Target, l *slog.Logger) {
	target := model.Participant{Role: to.Role, ID: to.ID}
	for _, s := range a.sockets.List(model.IDTag(*to.ID)) {
		if !model.ParseTags(a.sockets.Tags(s)).Is(target) {
			continue
		}
		if err := s.Send(frame); err != nil {
			l.Warn("[ROUTER] private delivery failed", slog.String("to", target.String()), slog.Any("err", err))
			return
		}
		l.Debug("[ROUTER] private delivery", slog.String("to", target.String()))
		return
	}
	l.Warn("[ROUTER] private recipient not found", slog.String("to", target.String()))
}

// deliverPublic broadcasts frame to every connection of role except sock.
func (a *Actor) deliverPublic(sock registry.Socket, frame []byte, role model.Role, l *slog.Logger) int {
	if role == "" {
		l.Warn("[ROUTER] relay target has neither role nor id, dropped")
		return 0
	}

	sent := 0
	for _, s := range a.sockets.List(model.RoleTag(role)) {
		if s == sock {
			continue
		}
		if err := s.Send(frame); err != nil {
			l.Debug("[ROUTER] broadcast delivery failed", slog.Any("err", err))
			continue
		}
		sent++
	}
	l.Debug("[ROUTER] broadcast delivered", slog.String("role", string(role)), slog.Int("sent", sent))
	return sent
}

// withSender returns payload with a "from" field naming the sender.
// A "from" supplied by the client is overwritten.
func withSender(payload json.RawMessage, sender model.Participant) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, errPayloadNotObject
	}

	from, err := json.Marshal(sender)
	if err != nil {
		return nil, err
	}
	fields["from"] = from
	return json.Marshal(fields)
}
