package cmd

import (
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	grpcsrv "github.com/webitel/im-relay-service/infra/server/grpc"
	httpsrv "github.com/webitel/im-relay-service/infra/server/http"
	"github.com/webitel/im-relay-service/infra/telemetry"
	"github.com/webitel/im-relay-service/internal/adapter/pubsub"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/domain/session"
	amqphandler "github.com/webitel/im-relay-service/internal/handler/amqp"
	grpchandler "github.com/webitel/im-relay-service/internal/handler/grpc"
	"github.com/webitel/im-relay-service/internal/handler/rest"
	"github.com/webitel/im-relay-service/internal/handler/ws"
	"github.com/webitel/im-relay-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger { return &fxevent.SlogLogger{Logger: l} }),
		telemetry.Module(telemetry.Build{Name: ServiceName, Version: version}),
		store.Module,
		pubsub.Module,
		session.Module,
		registry.Module,
		service.Module,
		ws.Module,
		rest.Module,
		httpsrv.Module,
		amqphandler.Module,
		grpcsrv.Module,
		grpchandler.Module,
	}, opts...)...)
}
