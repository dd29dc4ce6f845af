package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-relay-service/internal/domain/model"
)

func TestOnClose_ControllerClosesSatellites(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.closed(ctrl, model.CloseGoingAway, "")

	for _, s := range []*fakeSocket{sat0, sat1} {
		assert.Equal(t, 1, s.closes)
		assert.Equal(t, model.CloseNormal, s.code)
		assert.Equal(t, "controller (id: 0) disconnected", s.reason)
	}
	assert.Equal(t, 2, h.sockets.Len())

	// Satellite closures that follow do not cascade back.
	h.closed(sat0, sat0.code, sat0.reason)
	h.closed(sat1, sat1.code, sat1.reason)
	assert.Zero(t, ctrl.closes)
	assert.Zero(t, h.sockets.Len())
}

func TestOnClose_NonLastSatellite(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.closed(sat0, model.CloseNormal, "")

	assert.Zero(t, ctrl.closes)
	assert.Zero(t, sat1.closes)
	assert.Equal(t, 2, h.sockets.Len())
}

func TestOnClose_LastSatelliteClosesController(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.closed(sat0, model.CloseNormal, "")
	h.closed(sat1, model.CloseNormal, "")

	assert.Equal(t, 1, ctrl.closes)
	assert.Equal(t, model.CloseNormal, ctrl.code)
	assert.Equal(t, "last satellite disconnected (was id: 1)", ctrl.reason)
}

func TestOnClose_UnknownDoesNotCascade(t *testing.T) {
	h, ctrl, sat0, _ := connectedSession(t)
	unknown := h.mustDial("debug", "")

	h.closed(unknown, model.CloseNormal, "")

	assert.Zero(t, ctrl.closes)
	assert.Zero(t, sat0.closes)
	assert.Equal(t, 3, h.sockets.Len())
}

func TestOnClose_SentinelSkipsCascade(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	// The server closed ctrl as part of a session-wide close.
	reason := model.ClosedByServerReason("maintenance")
	h.actor.closeSocket(ctrl, model.CloseNormal, reason)
	h.closed(ctrl, model.CloseNormal, reason)

	assert.Zero(t, sat0.closes)
	assert.Zero(t, sat1.closes)
}

func TestOnClose_PeerCannotForgeSentinel(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	forged := "Session closed by satellite (id: 9)"
	h.closed(sat0, model.CloseNormal, forged)
	h.closed(sat1, model.CloseNormal, forged)

	assert.Equal(t, 1, ctrl.closes)
	assert.Equal(t, "last satellite disconnected (was id: 1)", ctrl.reason)
}

func TestTerminate(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	assert.NoError(t, h.actor.Terminate(h.ctx, "maintenance"))

	for _, s := range []*fakeSocket{ctrl, sat0, sat1} {
		assert.Equal(t, model.CloseNormal, s.code)
		assert.Equal(t, "Session closed by server (maintenance)", s.reason)
	}
	assert.Equal(t, model.SessionClosed, h.notifier.kinds()[len(h.notifier.kinds())-1])
}
