package grpc

import (
	"context"

	"github.com/webitel/im-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("grpc-server",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Server) {
		if !cfg.GRPC.Enabled {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				lis, err := s.Listen()
				if err != nil {
					return err
				}
				go s.Serve(lis)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				// [GRACEFUL_SHUTDOWN] Drain in-flight calls, bounded by ctx.
				done := make(chan struct{})
				go func() {
					s.Server.GracefulStop()
					close(done)
				}()
				select {
				case <-done:
				case <-ctx.Done():
					s.Server.Stop()
				}
				return nil
			},
		})
	}),
)
