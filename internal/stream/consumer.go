package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

var ErrAlreadyStarted = errors.New("consumer has already been started")

// Consumer continuously reads one topic and hands every message to a partitioned handler.
// A consumer is started at most once; after stopping it stays stopped.
type Consumer struct {
	subscriber Subscriber
	topic      string
	partitions int
	queueSize  int
	handler    func(ctx context.Context, msg Message)
	logger     *zap.Logger

	started      atomic.Bool
	state        atomic.Int32
	partitioner  *Partitioner
	subscription Subscription
	stopOnce     sync.Once
	done         chan struct{}
}

func NewConsumer(
	subscriber Subscriber,
	topic string,
	partitions int,
	queueSize int,
	handler func(ctx context.Context, msg Message),
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		topic:      topic,
		partitions: partitions,
		queueSize:  queueSize,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start subscribes to the topic and registers a shutdown hook that stops the consumer once
// ctx is done. Handlers receive a context that is not cancelled by shutdown, so a message
// that is being handled always runs to completion. The returned func stops the consumer
// and may be called any number of times.
func (c *Consumer) Start(ctx context.Context) (func(), error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	handlerCtx := context.WithoutCancel(ctx)
	c.partitioner = NewPartitioner(c.partitions, c.queueSize, func(msg Message) {
		c.handler(handlerCtx, msg)
	})
	subscription, err := c.subscriber.Subscribe(c.topic, c.partitioner.Dispatch)
	if err != nil {
		c.partitioner.Stop()
		return nil, fmt.Errorf("failed to start consuming %s: %w", c.topic, err)
	}
	c.subscription = subscription
	c.state.Store(int32(Running))
	c.logger.Info(
		"Started consuming topic",
		zap.String("topic", c.topic),
		zap.Int("partitions", c.partitioner.Partitions()),
	)

	go func() {
		select {
		case <-ctx.Done():
			c.stop()
		case <-c.done:
		}
	}()

	return c.stop, nil
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if err := c.subscription.Unsubscribe(); err != nil {
			c.logger.Error("Failed to unsubscribe from topic", zap.String("topic", c.topic), zap.Error(err))
		}
		discarded := c.partitioner.Stop()
		if discarded > 0 {
			c.logger.Warn(
				"Discarded queued messages on shutdown",
				zap.String("topic", c.topic),
				zap.Int("discarded", discarded),
			)
		}
		c.state.Store(int32(Stopped))
		c.logger.Info("Stopped consuming topic", zap.String("topic", c.topic))
	})
}
