package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const metadataTraceID = "trace_id"

var tracer = otel.Tracer("github.com/webitel/im-relay-service/internal/handler/amqp")

type traceIDKey struct{}

// TraceIDFromContext returns the trace id attached by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// A W3C traceparent in the metadata wins, then an explicit trace_id,
// then a fresh uuid. The consumer span is parented on the extracted context.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))

		traceID := msg.Metadata.Get(metadataTraceID)
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		msg.Metadata.Set(metadataTraceID, traceID)

		ctx, span := tracer.Start(ctx, "relay.control "+message.HandlerNameFromCtx(msg.Context()),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attribute.String("messaging.message.id", msg.UUID)),
		)
		defer span.End()

		msg.SetContext(context.WithValue(ctx, traceIDKey{}, traceID))
		msgs, err := h(msg)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return msgs, err
	}
}

// [LOGGING_MIDDLEWARE]
// One line per delivery attempt; failures are raised to WARN.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			attrs := []any{
				slog.String("handler", message.HandlerNameFromCtx(msg.Context())),
				slog.String("msg_id", msg.UUID),
				slog.String("trace_id", msg.Metadata.Get(metadataTraceID)),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				logger.Warn("[AMQP] message failed", append(attrs, slog.Any("err", err))...)
				return msgs, err
			}
			logger.Debug("[AMQP] message handled", attrs...)
			return msgs, nil
		}
	}
}

// [RETRY_MIDDLEWARE]
// Exponential backoff before the poison queue takes over.
func NewRetryMiddleware(logger watermill.LoggerAdapter) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
}
