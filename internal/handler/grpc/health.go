package grpc

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcsrv "github.com/webitel/im-relay-service/infra/server/grpc"
	"github.com/webitel/im-relay-service/internal/service"
)

// RelayServiceName is the health-check service name for the relay itself.
const RelayServiceName = "webitel.im.relay.v1.Relay"

// HealthService reports SERVING while the relay is accepting sessions.
type HealthService struct {
	*health.Server
	relay  service.Relayer
	logger *slog.Logger
}

func NewHealthService(relay service.Relayer, logger *slog.Logger) *HealthService {
	return &HealthService{
		Server: health.NewServer(),
		relay:  relay,
		logger: logger.With(slog.String("component", "grpc-health")),
	}
}

// Serving flips the overall and relay statuses to SERVING.
func (h *HealthService) Serving() {
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(RelayServiceName, healthpb.HealthCheckResponse_SERVING)
	stats := h.relay.Stats()
	h.logger.Info("[HEALTH] serving",
		slog.Int("sessions", stats.ActiveSessions),
		slog.Int("connections", stats.TotalConnections),
	)
}

// Draining marks all services NOT_SERVING and rejects further updates.
func (h *HealthService) Draining() {
	h.Shutdown()
	h.logger.Info("[HEALTH] draining")
}

func RegisterHealthService(lc fx.Lifecycle, server *grpcsrv.Server, hs *HealthService) {
	healthpb.RegisterHealthServer(server.Server, hs)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			hs.Serving()
			return nil
		},
		OnStop: func(context.Context) error {
			hs.Draining()
			return nil
		},
	})
}
