package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, factory ActorFactory, logger *slog.Logger) *Hub {
			return NewHub(factory,
				WithMaxResident(cfg.Session.MaxResident),
				WithIdleTTL(cfg.Session.IdleTTL),
				WithLogger(logger),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown(ctx) // [GRACEFUL_SHUTDOWN] Close every live session
				return nil
			},
		})
	}),
)
