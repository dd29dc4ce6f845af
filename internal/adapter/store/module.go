package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(NewBackend),
	fx.Invoke(func(lc fx.Lifecycle, b Backend) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return b.Close()
			},
		})
	}),
)

// NewBackend opens the configured backend, wrapped in a circuit breaker
// unless disabled.
func NewBackend(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Store.Driver {
	case "", "memory":
		backend = NewMemoryBackend()
	case "sqlite":
		backend, err = NewSQLiteBackend(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}

	logger.Info("[STORE] backend ready",
		slog.String("driver", cfg.Store.Driver),
		slog.Bool("breaker", cfg.Store.Breaker.Enabled),
	)

	if !cfg.Store.Breaker.Enabled {
		return backend, nil
	}
	return WithBreaker(backend, BreakerSettings{
		ConsecutiveFailures: cfg.Store.Breaker.Failures,
		Timeout:             cfg.Store.Breaker.Timeout,
		MaxRequests:         cfg.Store.Breaker.MaxRequests,
	}, logger), nil
}
