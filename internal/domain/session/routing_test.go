package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/internal/domain/model"
)

// connectedSession joins a controller and two satellites, then clears their frames.
func connectedSession(t *testing.T) (h *harness, ctrl, sat0, sat1 *fakeSocket) {
	t.Helper()
	h = newHarness(t, "T3", "T4")
	h.initialize("T1", "T2")

	ctrl = h.mustDial("connect", "T1")
	sat0 = h.mustDial("join", "T2")
	sat1 = h.mustDial("join", "T3")
	for _, s := range []*fakeSocket{ctrl, sat0, sat1} {
		s.frames = nil
	}
	return h, ctrl, sat0, sat1
}

func TestOnMessage_Ping(t *testing.T) {
	h, ctrl, sat0, _ := connectedSession(t)

	h.send(sat0, `{"type":"ping"}`)

	assert.JSONEq(t, `{"type":"pong"}`, sat0.last(t))
	assert.Empty(t, ctrl.frames)
}

func TestOnMessage_MalformedDropped(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	for _, frame := range []string{
		`not json`,
		`{"to":{"role":"controller"}}`,
		`{"payload":{"text":"hi"}}`,
		`{"to":{"role":"controller"},"payload":null}`,
		`{"to":{"role":"controller"},"payload":"text"}`,
		`{"to":{"role":"controller"},"payload":[1,2]}`,
		`{"to":{},"payload":{"text":"hi"}}`,
	} {
		h.send(sat0, frame)
	}

	assert.Empty(t, ctrl.frames)
	assert.Empty(t, sat0.frames)
	assert.Empty(t, sat1.frames)
	assert.Equal(t, 3, h.sockets.Len())
}

func TestOnMessage_GetParticipants(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.send(sat1, `{"payload":{"command":"get_participants"}}`)

	assert.Equal(t, []model.Participant{
		model.NewParticipant(model.RoleController, 0),
		model.NewParticipant(model.RoleSatellite, 0),
		model.NewParticipant(model.RoleSatellite, 1),
	}, participantsOf(t, sat1.last(t)))
	assert.Empty(t, ctrl.frames)
	assert.Empty(t, sat0.frames)
}

func TestOnMessage_PrivateRelay(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.send(ctrl, `{"to":{"role":"satellite","id":1},"payload":{"text":"hi"}}`)

	assert.JSONEq(t, `{"text":"hi","from":{"role":"controller","id":0}}`, sat1.last(t))
	assert.Empty(t, sat0.frames)
	assert.Empty(t, ctrl.frames)
}

// Controller 0 and satellite 0 share an id; the role picks the recipient.
func TestOnMessage_PrivateRelayDisambiguatesByRole(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.send(sat1, `{"to":{"role":"satellite","id":0},"payload":{"n":1}}`)
	assert.JSONEq(t, `{"n":1,"from":{"role":"satellite","id":1}}`, sat0.last(t))
	assert.Empty(t, ctrl.frames)

	sat0.frames = nil
	h.send(sat1, `{"to":{"role":"controller","id":0},"payload":{"n":2}}`)
	assert.JSONEq(t, `{"n":2,"from":{"role":"satellite","id":1}}`, ctrl.last(t))
	assert.Empty(t, sat0.frames)
}

func TestOnMessage_PrivateRelayRoleMismatch(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.send(sat0, `{"to":{"role":"controller","id":1},"payload":{"text":"hi"}}`)
	h.send(sat0, `{"to":{"role":"satellite","id":9},"payload":{"text":"hi"}}`)

	assert.Empty(t, ctrl.frames)
	assert.Empty(t, sat0.frames)
	assert.Empty(t, sat1.frames)
}

func TestOnMessage_PublicRelayExcludesSender(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)

	h.send(sat0, `{"to":{"role":"satellite"},"payload":{"text":"all"}}`)

	assert.JSONEq(t, `{"text":"all","from":{"role":"satellite","id":0}}`, sat1.last(t))
	assert.Empty(t, sat0.frames)
	assert.Empty(t, ctrl.frames)

	h.send(ctrl, `{"to":{"role":"satellite"},"payload":{"text":"both"}}`)
	assert.Len(t, sat0.frames, 1)
	assert.Len(t, sat1.frames, 2)
	assert.Empty(t, ctrl.frames)
}

func TestOnMessage_FromCannotBeSpoofed(t *testing.T) {
	h, ctrl, sat0, _ := connectedSession(t)

	h.send(sat0, `{"to":{"role":"controller"},"payload":{"from":{"role":"controller","id":0},"x":true}}`)

	assert.JSONEq(t, `{"x":true,"from":{"role":"satellite","id":0}}`, ctrl.last(t))
}

func TestOnMessage_CloseCommand(t *testing.T) {
	h, ctrl, sat0, sat1 := connectedSession(t)
	unknown := h.mustDial("debug", "")

	h.send(sat1, `{"payload":{"command":"close"}}`)

	const reason = "Session closed by satellite (id: 1)"
	for _, s := range []*fakeSocket{ctrl, sat0, sat1, unknown} {
		assert.Equal(t, 1, s.closes, s.name)
		assert.Equal(t, model.CloseNormal, s.code, s.name)
		assert.Equal(t, reason, s.reason, s.name)
	}

	// The transport reports each closure; the sentinel stops the cascade.
	for _, s := range []*fakeSocket{ctrl, sat0, sat1, unknown} {
		h.closed(s, s.code, s.reason)
	}
	for _, s := range []*fakeSocket{ctrl, sat0, sat1, unknown} {
		assert.Equal(t, 1, s.closes, s.name)
	}
	assert.Zero(t, h.sockets.Len())
	assert.Contains(t, h.notifier.kinds(), model.SessionClosed)
}

func TestWithSender(t *testing.T) {
	out, err := withSender([]byte(`{"a":1}`), model.Participant{Role: model.RoleUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"from":{"role":"unknown"}}`, string(out))

	_, err = withSender([]byte(`"text"`), model.Participant{Role: model.RoleUnknown})
	assert.ErrorIs(t, err, errPayloadNotObject)
}
