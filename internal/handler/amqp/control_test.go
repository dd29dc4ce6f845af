package amqp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/adapter/pubsub"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
	"github.com/webitel/im-relay-service/internal/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type terminateCall struct{ sessionID, reason string }

// fakeRelay hosts a fixed set of live sessions.
type fakeRelay struct {
	mu    sync.Mutex
	live  map[string]bool
	calls []terminateCall
}

func (r *fakeRelay) CreateSession(context.Context) (*model.SessionGrant, error) { return nil, nil }
func (r *fakeRelay) Fetch(context.Context, string, *http.Request, registry.Upgrade) registry.Response {
	return registry.Response{}
}
func (r *fakeRelay) Message(context.Context, string, registry.Socket, []byte)          {}
func (r *fakeRelay) Closed(context.Context, string, registry.Socket, registry.Closure) {}
func (r *fakeRelay) Alarm(context.Context, string)                                     {}
func (r *fakeRelay) Stats() model.HubStats                                             { return model.HubStats{} }

func (r *fakeRelay) Terminate(_ context.Context, sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[sessionID] {
		return service.ErrSessionNotFound
	}
	r.calls = append(r.calls, terminateCall{sessionID, reason})
	return nil
}

func (r *fakeRelay) terminated() []terminateCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]terminateCall(nil), r.calls...)
}

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{ID: "test-node"},
		PubSub: config.PubSubConfig{
			Driver:       pubsub.DriverGoChannel,
			EventsTopic:  "relay.session.events",
			ControlTopic: "relay.session.control",
		},
	}
}

func newControlHandler(t *testing.T, relay service.Relayer) (*ControlHandler, *pubsub.Provider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	p, err := pubsub.NewProvider(cfg, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	d := pubsub.NewEventDispatcher(p.Publisher(), cfg.PubSub.EventsTopic, logger)
	return NewControlHandler(cfg, relay, logger, d), p
}

func TestOnControlCommandV1(t *testing.T) {
	relay := &fakeRelay{live: map[string]bool{"s1": true}}
	h, _ := newControlHandler(t, relay)
	ctx := context.Background()

	require.NoError(t, h.OnControlCommandV1(ctx, &model.ControlCommand{SessionID: "s1", Command: CommandClose, Reason: "abuse"}))
	require.NoError(t, h.OnControlCommandV1(ctx, &model.ControlCommand{SessionID: "s1", Command: CommandClose}))
	require.NoError(t, h.OnControlCommandV1(ctx, &model.ControlCommand{SessionID: "elsewhere", Command: CommandClose}))
	require.NoError(t, h.OnControlCommandV1(ctx, &model.ControlCommand{SessionID: "s1", Command: "reboot"}))
	require.NoError(t, h.OnControlCommandV1(ctx, &model.ControlCommand{Command: CommandClose}))

	assert.Equal(t, []terminateCall{
		{"s1", "abuse"},
		{"s1", "operator request"},
	}, relay.terminated())
}

func TestBind_AcksUndecodablePayload(t *testing.T) {
	h, _ := newControlHandler(t, &fakeRelay{})
	called := false
	fn := Bind(h, func(context.Context, *model.ControlCommand) error {
		called = true
		return nil
	})

	assert.NoError(t, fn(message.NewMessage(watermill.NewUUID(), []byte("{broken"))))
	assert.False(t, called)
}

func TestBind_RecoversPanics(t *testing.T) {
	h, _ := newControlHandler(t, &fakeRelay{})
	fn := Bind(h, func(context.Context, *model.ControlCommand) error { panic("boom") })

	assert.NotPanics(t, func() {
		assert.NoError(t, fn(message.NewMessage(watermill.NewUUID(), []byte(`{}`))))
	})
}

func TestControlPipeline(t *testing.T) {
	relay := &fakeRelay{live: map[string]bool{"s1": true}}
	h, p := newControlHandler(t, relay)

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, h.RegisterHandlers(router, p))

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })
	<-router.Running()

	payload, err := json.Marshal(model.ControlCommand{SessionID: "s1", Command: CommandClose, Reason: "drain"})
	require.NoError(t, err)
	require.NoError(t, p.Publisher().Publish(h.controlTopic, message.NewMessage(watermill.NewUUID(), payload)))

	require.Eventually(t, func() bool { return len(relay.terminated()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, terminateCall{"s1", "drain"}, relay.terminated()[0])
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	next := func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	}

	msg := message.NewMessage(watermill.NewUUID(), nil)
	_, err := TraceIDMiddleware(next)(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, msg.Metadata.Get(metadataTraceID))

	msg = message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set(metadataTraceID, "given")
	_, err = TraceIDMiddleware(next)(msg)
	require.NoError(t, err)
	assert.Equal(t, "given", seen)
}

func TestTraceIDMiddleware_Traceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var seen string
	next := func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	}

	msg := message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	msg.Metadata.Set(metadataTraceID, "ignored")
	_, err := TraceIDMiddleware(next)(msg)
	require.NoError(t, err)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen)
	assert.Equal(t, seen, msg.Metadata.Get(metadataTraceID))
}
