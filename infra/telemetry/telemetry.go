package telemetry

import (
	"context"
	"log/slog"

	"github.com/webitel/im-relay-service/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// NewTracerProvider builds the SDK tracer provider for this instance.
// Spans are sampled by ratio and parent-based so upstream decisions win.
func NewTracerProvider(cfg *config.Config, serviceName, serviceVersion string) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(resourceFor(cfg, serviceName, serviceVersion)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Telemetry.SampleRatio))),
	)
}

func resourceFor(cfg *config.Config, serviceName, serviceVersion string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
		attribute.String("service.instance.id", cfg.Service.ID),
	)
}

// Build carries the values stamped at link time.
type Build struct {
	Name    string
	Version string
}

func Module(build Build) fx.Option {
	return fx.Module("telemetry",
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) {
			if !cfg.Telemetry.Enabled {
				return
			}
			tp := NewTracerProvider(cfg, build.Name, build.Version)
			otel.SetTracerProvider(tp)
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{}, propagation.Baggage{},
			))
			logger.Info("[TELEMETRY] tracer provider installed", slog.Float64("sample_ratio", cfg.Telemetry.SampleRatio))

			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return tp.Shutdown(ctx)
				},
			})
		}),
	)
}
