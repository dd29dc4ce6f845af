package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/service"
)

// CommandClose terminates every connection of a session.
const CommandClose = "close"

// [ON_CONTROL_COMMAND]
// Applies an operator command to a session hosted by this node.
func (h *ControlHandler) OnControlCommandV1(ctx context.Context, cmd *model.ControlCommand) error {
	if cmd.SessionID == "" {
		h.logger.Warn("[AMQP] control command without session id", "command", cmd.Command)
		return nil // ACK: Invalid routing is a terminal state.
	}

	switch cmd.Command {
	case CommandClose:
		reason := cmd.Reason
		if reason == "" {
			reason = "operator request"
		}
		err := h.relay.Terminate(ctx, cmd.SessionID, reason)
		if errors.Is(err, service.ErrSessionNotFound) {
			// [LOCALITY_FILTER] Handled by the node hosting the session, if any.
			h.logger.Debug("[AMQP] session not hosted here", "session_id", cmd.SessionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("terminate session %s: %w", cmd.SessionID, err)
		}
		return nil

	default:
		h.logger.Warn("[AMQP] unknown control command", "command", cmd.Command, "session_id", cmd.SessionID)
		return nil
	}
}
