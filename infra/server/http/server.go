package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/webitel/im-relay-service/config"
	"go.uber.org/fx"
)

const readHeaderTimeout = 10 * time.Second

// Server serves the REST and WebSocket surface.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(cfg *config.Config, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger.With(slog.String("component", "http")),
	}
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http: listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(lis)
}

// Serve serves lis in the background.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("[HTTP] serving", slog.String("addr", lis.Addr().String()))
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[HTTP] server stopped", slog.Any("err", err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for handlers within ctx.
// Hijacked WebSocket connections are closed by the hub shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

var Module = fx.Module("http-server",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Shutdown,
		})
	}),
)
