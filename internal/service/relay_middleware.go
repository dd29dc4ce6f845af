package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-relay-service/internal/domain/model"
)

// RelayMiddleware implements [DECORATOR_PATTERN] to add observability to
// session creation and termination without touching the actor logic.
type RelayMiddleware struct {
	Relayer
	Logger *slog.Logger
}

// NewRelayMiddleware creates a new logging decorator for the Relayer.
func NewRelayMiddleware(next Relayer, logger *slog.Logger) Relayer {
	return &RelayMiddleware{
		Relayer: next,
		Logger:  logger,
	}
}

func (m *RelayMiddleware) CreateSession(ctx context.Context) (*model.SessionGrant, error) {
	start := time.Now()

	grant, err := m.Relayer.CreateSession(ctx)
	if err != nil {
		m.Logger.Error("[RELAY] session creation failed",
			slog.Any("err", err),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}

	// Tokens are secrets: only the id is logged.
	m.Logger.Info("[RELAY] session created",
		slog.String("session_id", grant.SessionID),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return grant, nil
}

func (m *RelayMiddleware) Terminate(ctx context.Context, sessionID, reason string) error {
	err := m.Relayer.Terminate(ctx, sessionID, reason)
	if err != nil {
		m.Logger.Warn("[RELAY] termination failed",
			slog.String("session_id", sessionID),
			slog.Any("err", err),
		)
	}
	return err
}
