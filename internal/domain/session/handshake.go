package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pathConnect = "connect"
	pathJoin    = "join"

	// TokenParam is the query parameter carrying the role token.
	TokenParam = "token"

	maxInitializeBody = 8 << 10
)

// initializeRequest is the POST body forwarded by the creation endpoint.
type initializeRequest struct {
	ControllerToken string `json:"controllerToken"`
	SatelliteToken  string `json:"satelliteToken"`
}

// Fetch is the single request entry point of the actor: a POST initializes
// the session, an upgrade request runs the connection handshake.
func (a *Actor) Fetch(ctx context.Context, r *http.Request, up registry.Upgrade) (resp registry.Response) {
	ctx, span := a.tracer.Start(ctx, "session.fetch", trace.WithAttributes(
		attribute.String("session.id", a.sessionID),
		attribute.String("http.method", r.Method),
		attribute.String("url.path", r.URL.Path),
	))
	defer func() {
		span.SetAttributes(attribute.Int("http.status_code", resp.Status))
		span.End()
	}()

	if r.Method == http.MethodPost {
		return a.fetchInitialize(ctx, r)
	}

	if !websocket.IsWebSocketUpgrade(r) {
		return registry.Response{Status: http.StatusUpgradeRequired, Body: "Expected Upgrade: websocket"}
	}

	return a.handshake(ctx, r, up, span)
}

func (a *Actor) fetchInitialize(ctx context.Context, r *http.Request) registry.Response {
	var req initializeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxInitializeBody)).Decode(&req); err != nil {
		return registry.Response{Status: http.StatusBadRequest, Body: "invalid initialize payload"}
	}

	if err := a.Initialize(ctx, req.ControllerToken, req.SatelliteToken); err != nil {
		if errors.Is(err, ErrInvalidTokens) {
			return registry.Response{Status: http.StatusBadRequest, Body: err.Error()}
		}
		a.logger.Error("[SESSION] initialize failed", slog.Any("err", err))
		return registry.Response{Status: http.StatusInternalServerError, Body: "internal error"}
	}
	return registry.Response{Status: http.StatusOK, Body: "Session initialized"}
}

// handshake runs the unauthenticated → {controller, satellite, unknown}
// transition. Every failure answers the pending request and disposes of the
// server half: rejected before accept, closed after.
func (a *Actor) handshake(ctx context.Context, r *http.Request, up registry.Upgrade, span trace.Span) (resp registry.Response) {
	var sock registry.Socket

	// [PANIC_RECOVERY] An unexpected failure must not leave a socket dangling.
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("[HANDSHAKE] panic recovered", slog.Any("panic", rec))
			span.SetStatus(codes.Error, "panic")
			resp = a.abort(up, sock, fmt.Errorf("panic: %v", rec))
		}
	}()

	role := roleForPath(r.URL.Path)
	l := a.logger.With(slog.String("role", string(role)))

	peer, err := a.authorize(ctx, role, r.URL.Query().Get(TokenParam))
	if err != nil {
		span.RecordError(err)
		l.Warn("[HANDSHAKE] rejected", slog.Any("err", err))
		return a.abort(up, nil, err)
	}

	sock, err = up.Accept()
	if err != nil {
		span.RecordError(err)
		l.Error("[HANDSHAKE] accept failed", slog.Any("err", err))
		return registry.Response{Status: http.StatusInternalServerError, Body: "internal error"}
	}

	// Durable side effects only once the socket exists.
	if peer.Role == model.RoleSatellite {
		if err := a.admitSatellite(ctx, *peer.ID); err != nil {
			span.RecordError(err)
			l.Error("[HANDSHAKE] admission failed", slog.Any("err", err))
			return a.abort(up, sock, err)
		}
	}

	a.sockets.Accept(sock, peer.Tags()...)

	if err := a.send(sock, model.NewWelcomeFrame(peer)); err != nil {
		l.Warn("[HANDSHAKE] welcome delivery failed", slog.Any("err", err))
	}

	l.Info("[HANDSHAKE] connection established", slog.String("peer", peer.String()))

	switch peer.Role {
	case model.RoleController:
		a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.ControllerConnected, &peer, ""))
	case model.RoleSatellite:
		a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.SatelliteJoined, &peer, ""))
	}

	return registry.Response{Status: http.StatusSwitchingProtocols, Socket: sock}
}

// abort answers a failed handshake with a symmetric pair of signals: an HTTP
// status for the request and a close code for the server half.
func (a *Actor) abort(up registry.Upgrade, sock registry.Socket, err error) registry.Response {
	status, code := httpStatus(err)

	reason := err.Error()
	body := reason
	if status == http.StatusInternalServerError {
		reason, body = "internal error", "internal error"
	}

	if sock != nil {
		a.sockets.Remove(sock)
		a.closeSocket(sock, code, reason)
	} else {
		up.Reject(code, reason)
	}
	return registry.Response{Status: status, Body: body}
}

// authorize validates the target role and returns the identity to tag.
// It only reads durable state.
func (a *Actor) authorize(ctx context.Context, role model.Role, supplied string) (model.Participant, error) {
	switch role {
	case model.RoleController:
		// Singleton before token: a conflict is a 409 whatever the token.
		if err := a.enforceSingleton(role); err != nil {
			return model.Participant{}, err
		}
		if err := a.checkToken(ctx, role, store.KeyControllerToken, supplied); err != nil {
			return model.Participant{}, err
		}
		return model.NewParticipant(model.RoleController, model.ControllerID), nil

	case model.RoleSatellite:
		if err := a.checkToken(ctx, role, store.KeySatelliteToken, supplied); err != nil {
			return model.Participant{}, err
		}
		id, err := a.nextSatelliteID(ctx)
		if err != nil {
			return model.Participant{}, err
		}
		return model.NewParticipant(model.RoleSatellite, id), nil

	default:
		return model.Participant{Role: model.RoleUnknown}, nil
	}
}

// enforceSingleton fails when a connection already carries role.
func (a *Actor) enforceSingleton(role model.Role) error {
	if len(a.sockets.List(model.RoleTag(role))) > 0 {
		return &SingletonViolation{Role: role}
	}
	return nil
}

func (a *Actor) checkToken(ctx context.Context, role model.Role, key, supplied string) error {
	stored, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return &TokenError{Role: role}
	}
	return nil
}

// admitSatellite switches the session to keep-alive mode, consumes id and
// rotates the satellite token. The counter is persisted before the id is
// announced so a restart can never reuse it.
func (a *Actor) admitSatellite(ctx context.Context, id int) error {
	if err := a.store.CancelAlarm(ctx); err != nil {
		return fmt.Errorf("cancel expiry: %w", err)
	}
	if err := a.store.ScheduleAlarm(ctx, a.now().Add(a.keepAlive)); err != nil {
		return fmt.Errorf("arm keep-alive: %w", err)
	}
	if err := a.store.Put(ctx, store.KeyNextSatelliteID, strconv.Itoa(id+1)); err != nil {
		return fmt.Errorf("persist satellite counter: %w", err)
	}

	rotated, err := a.tokens.Token()
	if err != nil {
		return fmt.Errorf("rotate satellite token: %w", err)
	}
	if err := a.store.Put(ctx, store.KeySatelliteToken, rotated); err != nil {
		return fmt.Errorf("persist satellite token: %w", err)
	}

	notice := model.SatelliteConnected{Type: model.TypeSatelliteJoined, ID: id, NewToken: rotated}
	for _, c := range a.sockets.List(model.RoleTag(model.RoleController)) {
		if err := a.send(c, notice); err != nil {
			a.logger.Warn("[HANDSHAKE] controller notification failed", slog.Any("err", err))
		}
	}
	return nil
}

func (a *Actor) nextSatelliteID(ctx context.Context) (int, error) {
	raw, ok, err := a.store.Get(ctx, store.KeyNextSatelliteID)
	if err != nil {
		return 0, fmt.Errorf("read satellite counter: %w", err)
	}
	if !ok {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("corrupt satellite counter %q", raw)
	}
	return id, nil
}

// roleForPath maps the trailing path segment to the requested role.
func roleForPath(p string) model.Role {
	switch path.Base(p) {
	case pathConnect:
		return model.RoleController
	case pathJoin:
		return model.RoleSatellite
	default:
		return model.RoleUnknown
	}
}
