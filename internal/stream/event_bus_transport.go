package stream

import (
	"context"
	"fmt"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// EventBusTransport keeps topics inside the process. Handlers are subscribed
// transactionally, so each subscription sees its messages one at a time and in order.
type EventBusTransport struct {
	eventBus EventBus.Bus
	logger   *zap.Logger
}

func NewEventBusTransport(eventBus EventBus.Bus, logger *zap.Logger) *EventBusTransport {
	return &EventBusTransport{
		eventBus: eventBus,
		logger:   logger,
	}
}

func (et *EventBusTransport) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish to %s cancelled: %w", topic, err)
	}
	et.eventBus.Publish(topic, msg)
	return nil
}

func (et *EventBusTransport) Subscribe(topic string, handler Handler) (Subscription, error) {
	callback := func(msg Message) {
		handler(msg)
	}
	if err := et.eventBus.SubscribeAsync(topic, callback, true); err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return &eventBusSubscription{
		eventBus: et.eventBus,
		topic:    topic,
		callback: callback,
	}, nil
}

// Wait blocks until every message published so far has been handled.
func (et *EventBusTransport) Wait() {
	et.eventBus.WaitAsync()
}

type eventBusSubscription struct {
	eventBus EventBus.Bus
	topic    string
	callback func(msg Message)
}

func (s *eventBusSubscription) Unsubscribe() error {
	if err := s.eventBus.Unsubscribe(s.topic, s.callback); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", s.topic, err)
	}
	return nil
}
