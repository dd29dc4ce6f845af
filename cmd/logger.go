package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-relay-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// ProvideLogger builds the process logger and installs it as the slog default.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	switch {
	case cfg.Log.OTel:
		logger = slog.New(&levelHandler{
			Handler: otelslog.NewHandler(ServiceName),
			level:   cfg.LogLevel,
		})
	case cfg.Log.Format == "text":
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	default:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	logger = logger.With(
		slog.String("service", ServiceName),
		slog.String("instance", cfg.Service.ID),
	)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}

// levelHandler applies a live level to a handler that has none of its own.
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}
