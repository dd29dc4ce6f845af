package model

import (
	"fmt"
	"strings"
)

// WebSocket close codes used by the relay (RFC 6455 §7.4.1).
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// ClosedByPrefix starts every reason produced by a session-wide close.
// The close handler treats it as a sentinel and skips cascading.
const ClosedByPrefix = "Session closed by"

// ClosedByReason records who requested a session-wide close.
func ClosedByReason(p Participant) string {
	return fmt.Sprintf("%s %s", ClosedByPrefix, p)
}

// ClosedByServerReason is used for operator initiated termination.
func ClosedByServerReason(reason string) string {
	if reason == "" {
		return ClosedByPrefix + " server"
	}
	return fmt.Sprintf("%s server (%s)", ClosedByPrefix, reason)
}

// IsClosedBy reports whether reason carries the session-wide close sentinel.
func IsClosedBy(reason string) bool {
	return strings.HasPrefix(reason, ClosedByPrefix)
}

// ControllerLeftReason is sent to satellites when the controller goes away.
func ControllerLeftReason(p Participant) string {
	return fmt.Sprintf("controller (id: %s) disconnected", p.IDString())
}

// LastSatelliteLeftReason is sent to the controller when no satellite remains.
func LastSatelliteLeftReason(p Participant) string {
	return fmt.Sprintf("last satellite disconnected (was id: %s)", p.IDString())
}
