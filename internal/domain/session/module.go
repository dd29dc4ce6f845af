package session

import (
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"go.uber.org/fx"
)

type factoryParams struct {
	fx.In

	Config   *config.Config
	Backend  store.Backend
	Notifier Notifier `optional:"true"`
	Logger   *slog.Logger
}

// Module provides the actor factory the registry hub rebuilds actors with.
var Module = fx.Module("session",
	fx.Provide(NewFactory),
)

// NewFactory binds every rebuilt actor to its durable scope.
func NewFactory(p factoryParams) registry.ActorFactory {
	return func(sessionID string, sockets registry.SocketRegistry) registry.Actor {
		return New(sessionID, p.Backend.Scope(sessionID), sockets,
			WithExpiryTTL(p.Config.Session.ExpiryTTL),
			WithKeepAlive(p.Config.Session.KeepAlive),
			WithNotifier(p.Notifier),
			WithLogger(p.Logger),
		)
	}
}
