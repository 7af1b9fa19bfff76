package extractor

import (
	"context"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/landscape/converter"
	spanModel "github.com/Avi18971911/Reconstructor/internal/span/model"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"go.uber.org/zap"
)

// RecordExtractor turns the spans on the traces topic into landscape records on the
// records topic, keyed by landscape token.
type RecordExtractor struct {
	consumer     *stream.Consumer
	publisher    stream.Publisher
	recordsTopic string
	logger       *zap.Logger
}

func NewRecordExtractor(
	subscriber stream.Subscriber,
	publisher stream.Publisher,
	cfg config.StreamConfig,
	logger *zap.Logger,
) *RecordExtractor {
	re := &RecordExtractor{
		publisher:    publisher,
		recordsTopic: cfg.TopicRecords,
		logger:       logger,
	}
	re.consumer = stream.NewConsumer(
		subscriber,
		cfg.TopicTraces,
		cfg.Partitions,
		cfg.QueueSize,
		re.handleMessage,
		logger,
	)
	return re
}

func (re *RecordExtractor) Start(ctx context.Context) (func(), error) {
	return re.consumer.Start(ctx)
}

func (re *RecordExtractor) State() stream.State {
	return re.consumer.State()
}

func (re *RecordExtractor) handleMessage(ctx context.Context, msg stream.Message) {
	span, err := stream.Decode[spanModel.Span](msg)
	if err != nil {
		re.logger.Error("Failed to decode span from stream", zap.String("key", msg.Key), zap.Error(err))
		return
	}

	record, err := converter.ToRecord(span)
	if err != nil {
		re.logger.Warn(
			"Dropping span with malformed operation name",
			zap.String("landscape_token", span.LandscapeToken),
			zap.String("operation_name", span.OperationName),
			zap.Error(err),
		)
		return
	}

	out, err := stream.Encode(record.LandscapeToken, record)
	if err != nil {
		re.logger.Error("Failed to encode record", zap.Error(err))
		return
	}
	if err := re.publisher.Publish(ctx, re.recordsTopic, out); err != nil {
		re.logger.Error(
			"Failed to publish record",
			zap.String("topic", re.recordsTopic),
			zap.String("landscape_token", record.LandscapeToken),
			zap.Error(err),
		)
	}
}
