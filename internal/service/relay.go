package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/domain/token"
)

// ErrSessionNotFound is returned for operations on a session with no live connections.
var ErrSessionNotFound = errors.New("service: session not found")

// [RELAY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (HTTP/WebSocket/AMQP)
type Relayer interface {
	// CreateSession allocates a session id, issues both tokens and initializes the actor.
	CreateSession(ctx context.Context) (*model.SessionGrant, error)
	// Fetch forwards a request verbatim to the session actor.
	Fetch(ctx context.Context, sessionID string, r *http.Request, up registry.Upgrade) registry.Response
	Message(ctx context.Context, sessionID string, sock registry.Socket, data []byte)
	Closed(ctx context.Context, sessionID string, sock registry.Socket, c registry.Closure)
	Alarm(ctx context.Context, sessionID string)
	// Terminate closes every connection of a live session.
	Terminate(ctx context.Context, sessionID, reason string) error
	Stats() model.HubStats
}

// Interface guard
var _ Relayer = (*RelayService)(nil)

type RelayService struct {
	hub    registry.Hubber
	tokens token.Generator
}

// NewRelayService returns a production-ready instance of the service.
func NewRelayService(hub registry.Hubber) *RelayService {
	return &RelayService{
		hub:    hub,
		tokens: token.Random,
	}
}

func (s *RelayService) CreateSession(ctx context.Context) (*model.SessionGrant, error) {
	controllerToken, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	satelliteToken, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	grant := &model.SessionGrant{
		SessionID:       token.SessionID(),
		ControllerToken: controllerToken,
		SatelliteToken:  satelliteToken,
	}

	s.hub.Do(grant.SessionID, func(a registry.Actor) {
		err = a.Initialize(ctx, controllerToken, satelliteToken)
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return grant, nil
}

func (s *RelayService) Fetch(ctx context.Context, sessionID string, r *http.Request, up registry.Upgrade) (resp registry.Response) {
	s.hub.Do(sessionID, func(a registry.Actor) {
		resp = a.Fetch(ctx, r, up)
	})
	return resp
}

func (s *RelayService) Message(ctx context.Context, sessionID string, sock registry.Socket, data []byte) {
	s.hub.Do(sessionID, func(a registry.Actor) {
		a.OnMessage(ctx, sock, data)
	})
}

func (s *RelayService) Closed(ctx context.Context, sessionID string, sock registry.Socket, c registry.Closure) {
	s.hub.Do(sessionID, func(a registry.Actor) {
		a.OnClose(ctx, sock, c)
	})
}

func (s *RelayService) Alarm(ctx context.Context, sessionID string) {
	s.hub.Do(sessionID, func(a registry.Actor) {
		a.OnAlarm(ctx)
	})
}

func (s *RelayService) Terminate(ctx context.Context, sessionID, reason string) (err error) {
	if !s.hub.Live(sessionID) {
		return ErrSessionNotFound
	}
	s.hub.Do(sessionID, func(a registry.Actor) {
		err = a.Terminate(ctx, reason)
	})
	return err
}

func (s *RelayService) Stats() model.HubStats {
	return s.hub.Stats()
}
