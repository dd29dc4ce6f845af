package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/domain/token"
)

const testSession = "c6a1f4d2-session"

var errBoom = errors.New("boom")

type fakeSocket struct {
	name   string
	frames [][]byte
	closes int
	code   int
	reason string
}

func (s *fakeSocket) Send(data []byte) error {
	s.frames = append(s.frames, append([]byte(nil), data...))
	return nil
}

func (s *fakeSocket) Close(code int, reason string) error {
	s.closes++
	s.code, s.reason = code, reason
	return nil
}

func (s *fakeSocket) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.frames, "%s received no frames", s.name)
	return string(s.frames[len(s.frames)-1])
}

type fakeUpgrade struct {
	sock      *fakeSocket
	acceptErr error

	accepted bool
	rejected bool
	code     int
	reason   string
}

func (u *fakeUpgrade) Accept() (registry.Socket, error) {
	if u.acceptErr != nil {
		return nil, u.acceptErr
	}
	u.accepted = true
	return u.sock, nil
}

func (u *fakeUpgrade) Reject(code int, reason string) {
	u.rejected = true
	u.code, u.reason = code, reason
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*model.LifecycleEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev *model.LifecycleEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) kinds() []model.LifecycleKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	res := make([]model.LifecycleKind, 0, len(n.events))
	for _, ev := range n.events {
		res = append(res, ev.Kind)
	}
	return res
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errBoom }
func (failingStore) Put(context.Context, string, string) error         { return errBoom }
func (failingStore) Delete(context.Context, ...string) error           { return errBoom }
func (failingStore) ScheduleAlarm(context.Context, time.Time) error    { return errBoom }
func (failingStore) CancelAlarm(context.Context) error                 { return errBoom }
func (failingStore) Alarm(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, errBoom
}

// harness hosts one session the way the hub does: the backend and the
// registry outlive every actor instance built over them.
type harness struct {
	t        *testing.T
	ctx      context.Context
	backend  *store.MemoryBackend
	sockets  registry.SocketRegistry
	tokens   token.Generator
	notifier *recordingNotifier
	now      time.Time
	actor    *Actor
}

func newHarness(t *testing.T, rotated ...string) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		backend:  store.NewMemoryBackend(),
		sockets:  registry.NewMemoryRegistry(),
		tokens:   token.Sequence(rotated...),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.rebuild()
	return h
}

// rebuild simulates hibernation: a fresh actor over the same durable state.
func (h *harness) rebuild() *Actor {
	h.actor = New(testSession, h.backend.Scope(testSession), h.sockets,
		WithTokens(h.tokens),
		WithNotifier(h.notifier),
		WithClock(func() time.Time { return h.now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return h.actor
}

func (h *harness) scope() store.Store { return h.backend.Scope(testSession) }

func (h *harness) initialize(controllerToken, satelliteToken string) {
	h.t.Helper()
	require.NoError(h.t, h.actor.Initialize(h.ctx, controllerToken, satelliteToken))
}

func (h *harness) dial(segment, tok string) (*fakeSocket, *fakeUpgrade, registry.Response) {
	h.t.Helper()
	target := "/session/" + testSession + "/" + segment
	if tok != "" {
		target += "?" + TokenParam + "=" + tok
	}
	u := &fakeUpgrade{sock: &fakeSocket{name: segment}}
	resp := h.actor.Fetch(h.ctx, upgradeRequest(target), u)
	return u.sock, u, resp
}

// mustDial dials and requires a switched-protocols answer.
func (h *harness) mustDial(segment, tok string) *fakeSocket {
	h.t.Helper()
	sock, _, resp := h.dial(segment, tok)
	require.Equal(h.t, http.StatusSwitchingProtocols, resp.Status, resp.Body)
	require.Same(h.t, sock, resp.Socket)
	return sock
}

// closed delivers the close event the transport reports for sock. The close
// counts as local when the actor closed sock itself.
func (h *harness) closed(sock *fakeSocket, code int, reason string) {
	h.actor.OnClose(h.ctx, sock, registry.Closure{Code: code, Reason: reason, Clean: true, Local: sock.closes > 0})
}

func (h *harness) send(sock *fakeSocket, frame string) {
	h.actor.OnMessage(h.ctx, sock, []byte(frame))
}

func (h *harness) value(key string) (string, bool) {
	h.t.Helper()
	v, ok, err := h.scope().Get(h.ctx, key)
	require.NoError(h.t, err)
	return v, ok
}

func upgradeRequest(target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Sec-WebSocket-Version", "13")
	r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return r
}

func postRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/session/"+testSession, strings.NewReader(body))
}

func participantsOf(t *testing.T, frame string) []model.Participant {
	t.Helper()
	var list model.ParticipantsList
	require.NoError(t, json.Unmarshal([]byte(frame), &list))
	require.Equal(t, model.TypeParticipantsList, list.Type)
	return list.Participants
}
