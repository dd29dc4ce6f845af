package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"buf.build/go/protovalidate"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	protovalidatemw "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/protovalidate"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/infra/server/grpc/interceptors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server wraps the gRPC server with its listen address.
type Server struct {
	Server *grpc.Server
	addr   string
	logger *slog.Logger
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	validator, err := protovalidate.New()
	if err != nil {
		return nil, fmt.Errorf("grpc: protovalidate: %w", err)
	}

	l := logger.With(slog.String("component", "grpc"))
	recoveryOpt := recovery.WithRecoveryHandler(func(p any) error {
		l.Error("[GRPC] panic recovered", slog.Any("panic", p))
		return status.Error(codes.Internal, "internal error")
	})
	loggingOpt := logging.WithLogOnEvents(logging.FinishCall)

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.UnaryServerInterceptor(interceptors.Logger(l), loggingOpt),
			protovalidatemw.UnaryServerInterceptor(validator),
			interceptors.NewUnaryNodeInterceptor(cfg.Service.ID),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			logging.StreamServerInterceptor(interceptors.Logger(l), loggingOpt),
			protovalidatemw.StreamServerInterceptor(validator),
			interceptors.NewStreamNodeInterceptor(cfg.Service.ID),
		),
	)

	return &Server{Server: srv, addr: cfg.GRPC.Addr, logger: l}, nil
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen %s: %w", s.addr, err)
	}
	return lis, nil
}

// Serve blocks serving lis until the server stops.
func (s *Server) Serve(lis net.Listener) {
	s.logger.Info("[GRPC] serving", slog.String("addr", lis.Addr().String()))
	if err := s.Server.Serve(lis); err != nil {
		s.logger.Error("[GRPC] server stopped", slog.Any("err", err))
	}
}
