package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OnAlarm handles both the pre-join expiry and the keep-alive tick. It never
// fails: errors and panics are logged and swallowed.
func (a *Actor) OnAlarm(ctx context.Context) {
	ctx, span := a.tracer.Start(ctx, "session.alarm", trace.WithAttributes(
		attribute.String("session.id", a.sessionID),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			span.SetStatus(codes.Error, "panic")
			a.logger.Error("[ALARM] panic recovered", slog.Any("panic", rec))
		}
	}()

	if err := a.onAlarm(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error("[ALARM] handler failed", slog.Any("err", err))
	}
}

func (a *Actor) onAlarm(ctx context.Context) error {
	if n := a.sockets.Len(); n > 0 {
		if err := a.store.ScheduleAlarm(ctx, a.now().Add(a.keepAlive)); err != nil {
			return fmt.Errorf("re-arm keep-alive: %w", err)
		}
		a.logger.Debug("[ALARM] keep-alive re-armed", slog.Int("connections", n))
		return nil
	}

	// Session ids are never reused, so dropping every key is final.
	if err := a.store.Delete(ctx,
		store.KeySatelliteToken,
		store.KeyControllerToken,
		store.KeyNextSatelliteID,
	); err != nil {
		return fmt.Errorf("tear down: %w", err)
	}

	a.logger.Info("[ALARM] session expired")
	a.notifier.Notify(ctx, model.NewLifecycleEvent(a.sessionID, model.SessionExpired, nil, ""))
	return nil
}
