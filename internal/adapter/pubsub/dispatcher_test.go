package pubsub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/domain/model"
)

func TestDispatcher_PublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(&config.Config{PubSub: config.PubSubConfig{Driver: DriverGoChannel}}, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	sub, err := p.Subscriber("test")
	require.NoError(t, err)
	msgs, err := sub.Subscribe(ctx, "relay.session.events")
	require.NoError(t, err)

	d := NewEventDispatcher(p.Publisher(), "relay.session.events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	peer := model.NewParticipant(model.RoleSatellite, 3)
	d.Notify(ctx, model.NewLifecycleEvent("s1", model.SatelliteJoined, &peer, ""))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "relay.session.satellite.joined", msg.Metadata.Get(MetadataRoutingKey))

		var ev model.LifecycleEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, model.SatelliteJoined, ev.Kind)
		require.NotNil(t, ev.Peer)
		assert.True(t, ev.Peer.Is(peer))
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle event not delivered")
	}
}

func TestDispatcher_RejectsNil(t *testing.T) {
	p, err := NewProvider(&config.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	d := NewEventDispatcher(p.Publisher(), "events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, d.Publish(context.Background(), nil))
}

func TestNewProvider_UnknownDriver(t *testing.T) {
	_, err := NewProvider(&config.Config{PubSub: config.PubSubConfig{Driver: "kafka"}}, watermill.NopLogger{})
	assert.Error(t, err)
}
