package pubsub

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-relay-service/config"
)

const (
	DriverGoChannel = "gochannel"
	DriverAMQP      = "amqp"
)

// Provider owns the bus connections of the process.
// gochannel shares one in-process bus between publisher and subscribers.
type Provider struct {
	driver  string
	amqpURL string
	logger  watermill.LoggerAdapter

	publisher message.Publisher
	closers   []func() error
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) (*Provider, error) {
	p := &Provider{
		driver:  cfg.PubSub.Driver,
		amqpURL: cfg.PubSub.AMQPURL,
		logger:  logger,
	}

	switch p.driver {
	case "", DriverGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		p.publisher = ch
		p.closers = append(p.closers, ch.Close)

	case DriverAMQP:
		pub, err := amqp.NewPublisher(amqp.NewDurablePubSubConfig(p.amqpURL, nil), logger)
		if err != nil {
			return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
		}
		p.publisher = pub
		p.closers = append(p.closers, pub.Close)

	default:
		return nil, fmt.Errorf("pubsub: unknown driver %q", p.driver)
	}
	return p, nil
}

func (p *Provider) Publisher() message.Publisher { return p.publisher }

// Subscriber builds a subscriber whose queue is unique to queueSuffix.
func (p *Provider) Subscriber(queueSuffix string) (message.Subscriber, error) {
	if ch, ok := p.publisher.(*gochannel.GoChannel); ok {
		return ch, nil
	}

	sub, err := amqp.NewSubscriber(
		amqp.NewDurablePubSubConfig(p.amqpURL, amqp.GenerateQueueNameTopicNameWithSuffix(queueSuffix)),
		p.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp subscriber: %w", err)
	}
	p.closers = append(p.closers, sub.Close)
	return sub, nil
}

func (p *Provider) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
