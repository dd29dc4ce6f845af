package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/adapter/pubsub"
	"github.com/webitel/im-relay-service/internal/service"
	"go.uber.org/fx"
)

const (
	// ------------------- QUEUES (CONSUMERS) --------------------
	ControlProcessorQueue = "im-relay.control-processor.v1"
	ControlPoisonTopic    = "im-relay.control-processor.v1.poison"
)

type ControlHandler struct {
	relay        service.Relayer
	logger       *slog.Logger
	publisher    pubsub.EventDispatcher
	controlTopic string
	serviceID    string
}

func NewControlHandler(cfg *config.Config, relay service.Relayer, logger *slog.Logger, dispatcher pubsub.EventDispatcher) *ControlHandler {
	return &ControlHandler{
		relay:        relay,
		logger:       logger,
		publisher:    dispatcher,
		controlTopic: cfg.PubSub.ControlTopic,
		serviceID:    cfg.Service.ID,
	}
}

// NewWatermillRouter builds the router and ties its run loop to the app lifecycle.
func NewWatermillRouter(lc fx.Lifecycle, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("watermill router: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("watermill router stopped", err, nil)
				}
			}()
			<-router.Running()
			return nil
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *ControlHandler) RegisterHandlers(router *message.Router, provider *pubsub.Provider) error {
	poison, err := middleware.PoisonQueue(h.publisher.Publisher(), ControlPoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue setup failed: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_CONTROL_COMMAND", h.controlTopic, Bind(h, h.OnControlCommandV1)},
	}

	for _, c := range configs {
		// [UNIQUE_HANDLER_QUEUE]
		// Every node consumes every command: sessions live on exactly one node.
		// Format: im-relay.control-processor.v1.im-relay-1.ON_CONTROL_COMMAND
		handlerQueue := fmt.Sprintf("%s.%s.%s", ControlProcessorQueue, h.serviceID, c.name)

		sub, err := provider.Subscriber(handlerQueue)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware(router.Logger()).Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("[AMQP] control pipeline ready", "topic", h.controlTopic)
	return nil
}
