package pubsub

import (
	"context"
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/domain/session"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewProvider,
		fx.Annotate(
			func(cfg *config.Config, p *Provider, logger *slog.Logger) *Dispatcher {
				return NewEventDispatcher(p.Publisher(), cfg.PubSub.EventsTopic, logger)
			},
			fx.As(new(EventDispatcher)),
			fx.As(new(session.Notifier)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, p *Provider) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return p.Close()
			},
		})
	}),
)
