package stream

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is one keyed entry of a topic. The key only decides the partition.
type Message struct {
	Key   string
	Value []byte
}

type Handler func(msg Message)

type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

type Subscriber interface {
	Subscribe(topic string, handler Handler) (Subscription, error)
}

type Subscription interface {
	Unsubscribe() error
}

func Encode[ValueType any](key string, value ValueType) (Message, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode stream value: %w", err)
	}
	return Message{Key: key, Value: data}, nil
}

func Decode[ValueType any](msg Message) (ValueType, error) {
	var value ValueType
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		return value, fmt.Errorf("failed to decode stream value with key %q: %w", msg.Key, err)
	}
	return value, nil
}
