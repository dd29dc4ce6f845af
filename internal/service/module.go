package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// [DECORATION_LAYER] Wrap the Relayer to add cross-cutting concerns.
		// Pre-decorated so consumers in every module get the wrapped Relayer.
		func(hub registry.Hubber, logger *slog.Logger) Relayer {
			return NewRelayMiddleware(NewRelayService(hub), logger)
		},
		func(cfg *config.Config, backend store.Backend, relay Relayer, logger *slog.Logger) *Scheduler {
			return NewScheduler(backend, relay, logger,
				WithPollInterval(cfg.Alarm.PollInterval),
				WithConcurrency(cfg.Alarm.Concurrency),
			)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: s.Stop,
		})
	}),
)
