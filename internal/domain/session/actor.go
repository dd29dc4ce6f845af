// Package session implements the relay session actor.
//
// One Actor serves one session id. The host runs its handlers one at a
// time and may drop the instance between any two events, so an Actor holds
// no session state of its own: tokens and counters are read from the
// durable store at the top of every handler and connections are described
// only by their registry tags.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/domain/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultExpiryTTL = 5 * time.Minute
	DefaultKeepAlive = 30 * time.Second
)

// Interface guard
var _ registry.Actor = (*Actor)(nil)

// Notifier publishes lifecycle transitions to the outside world.
type Notifier interface {
	Notify(ctx context.Context, ev *model.LifecycleEvent)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *model.LifecycleEvent) {}

type Actor struct {
	sessionID string
	store     store.Store
	sockets   registry.SocketRegistry

	tokens    token.Generator
	notifier  Notifier
	now       func() time.Time
	expiryTTL time.Duration
	keepAlive time.Duration

	logger *slog.Logger
	tracer trace.Tracer
}

// New builds the actor of sessionID over its durable scope and registry.
func New(sessionID string, st store.Store, sockets registry.SocketRegistry, opts ...Option) *Actor {
	a := &Actor{
		sessionID: sessionID,
		store:     st,
		sockets:   sockets,
		tokens:    token.Random,
		notifier:  noopNotifier{},
		now:       time.Now,
		expiryTTL: DefaultExpiryTTL,
		keepAlive: DefaultKeepAlive,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/webitel/im-relay-service/session"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("session_id", sessionID))
	return a
}

// Initialize stores both tokens and arms the pre-join expiry alarm.
// Calling it again overwrites the tokens and re-arms the alarm.
func (a *Actor) Initialize(ctx context.Context, controllerToken, satelliteToken string) error {
	if controllerToken == "" || satelliteToken == "" {
		return ErrInvalidTokens
	}
	if err := a.store.Put(ctx, store.KeyControllerToken, controllerToken); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := a.store.Put(ctx, store.KeySatelliteToken, satelliteToken); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := a.store.ScheduleAlarm(ctx, a.now().Add(a.expiryTTL)); err != nil {
		return fmt.Errorf("initialize: arm expiry: %w", err)
	}

	a.logger.Info("[SESSION] initialized", slog.Duration("expires_in", a.expiryTTL))
	a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.SessionInitialized, nil, ""))
	return nil
}

// Participants lists every connection of the session, in accept order.
func (a *Actor) Participants() []model.Participant {
	socks := a.sockets.List("")
	res := make([]model.Participant, 0, len(socks))
	for _, s := range socks {
		res = append(res, model.ParseTags(a.sockets.Tags(s)))
	}
	return res
}

// Terminate closes every connection on behalf of an operator.
func (a *Actor) Terminate(ctx context.Context, reason string) error {
	closed := a.closeAll(model.ClosedByServerReason(reason))
	a.logger.Info("[SESSION] terminated by server",
		slog.String("reason", reason),
		slog.Int("closed", closed),
	)
	a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.SessionClosed, nil, reason))
	return nil
}

// send marshals v and writes it to sock as a single text frame.
func (a *Actor) send(sock registry.Socket, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return sock.Send(data)
}

// closeAll closes every connection with a normal closure and reason.
func (a *Actor) closeAll(reason string) int {
	socks := a.sockets.List("")
	for _, s := range socks {
		a.closeSocket(s, model.CloseNormal, reason)
	}
	return len(socks)
}

// closeRole closes every connection carrying role.
func (a *Actor) closeRole(role model.Role, reason string) int {
	socks := a.sockets.List(model.RoleTag(role))
	for _, s := range socks {
		a.closeSocket(s, model.CloseNormal, reason)
	}
	return len(socks)
}

func (a *Actor) closeSocket(s registry.Socket, code int, reason string) {
	if err := s.Close(code, reason); err != nil {
		a.logger.Debug("[SESSION] close failed",
			slog.String("peer", model.ParseTags(a.sockets.Tags(s)).String()),
			slog.Any("err", err),
		)
	}
}
