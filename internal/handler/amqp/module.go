package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-relay-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewControlHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *ControlHandler, router *message.Router, provider *pubsub.Provider) error {
		return h.RegisterHandlers(router, provider)
	}),
)
