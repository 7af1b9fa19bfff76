package stream

import (
	"context"
	"fmt"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	KeyHeader            = "Landscape-Key"
	SchemaRegistryHeader = "Schema-Registry"
)

// NatsTransport carries topics as NATS subjects. Subscriptions join a queue group named
// after the application id, so instances sharing an id split the stream between them.
type NatsTransport struct {
	nc                *nats.Conn
	queueGroup        string
	schemaRegistryURL string
	logger            *zap.Logger
}

func NewNatsTransport(cfg config.StreamConfig, logger *zap.Logger) (*NatsTransport, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name(cfg.ApplicationID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.URL))
	return &NatsTransport{
		nc:                nc,
		queueGroup:        cfg.ApplicationID,
		schemaRegistryURL: cfg.SchemaRegistryURL,
		logger:            logger,
	}, nil
}

func (nt *NatsTransport) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish to %s cancelled: %w", topic, err)
	}
	natsMsg := nats.NewMsg(topic)
	natsMsg.Header.Set(KeyHeader, msg.Key)
	if nt.schemaRegistryURL != "" {
		natsMsg.Header.Set(SchemaRegistryHeader, nt.schemaRegistryURL)
	}
	natsMsg.Data = msg.Value
	if err := nt.nc.PublishMsg(natsMsg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe delivers messages of one subscription sequentially on a single goroutine.
func (nt *NatsTransport) Subscribe(topic string, handler Handler) (Subscription, error) {
	sub, err := nt.nc.QueueSubscribe(topic, nt.queueGroup, func(natsMsg *nats.Msg) {
		handler(Message{
			Key:   natsMsg.Header.Get(KeyHeader),
			Value: natsMsg.Data,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	nt.logger.Info(
		"Subscribed to NATS subject",
		zap.String("subject", topic),
		zap.String("queue_group", nt.queueGroup),
	)
	return sub, nil
}

// Close drains pending publishes and subscriptions before closing the connection.
func (nt *NatsTransport) Close() {
	if nt.nc == nil {
		return
	}
	if err := nt.nc.Drain(); err != nil {
		nt.logger.Error("Failed to drain NATS connection", zap.Error(err))
		nt.nc.Close()
		return
	}
	nt.logger.Info("NATS connection drained and closed")
}
