package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/config"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracerProvider(t *testing.T) {
	cfg := &config.Config{
		Service:   config.ServiceConfig{ID: "relay-7"},
		Telemetry: config.TelemetryConfig{Enabled: true, SampleRatio: 1},
	}
	tp := NewTracerProvider(cfg, "im-relay-service", "1.2.3")
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	_, span = NewTracerProvider(&config.Config{}, "x", "y").Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}

func TestResourceAttributes(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{ID: "relay-7"}}
	res := resourceFor(cfg, "im-relay-service", "1.2.3")

	v, ok := res.Set().Value(attribute.Key("service.instance.id"))
	require.True(t, ok)
	assert.Equal(t, "relay-7", v.AsString())
}
