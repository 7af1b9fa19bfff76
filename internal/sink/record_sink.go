package sink

import (
	"context"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"go.uber.org/zap"
)

// RecordSink persists every landscape record arriving on the records topic. A record that
// cannot be decoded or persisted is logged and skipped; it is never retried and never
// stops the stream.
type RecordSink struct {
	consumer   *stream.Consumer
	recordRepo repository.Repository[model.LandscapeRecord]
	logger     *zap.Logger
}

func NewRecordSink(
	subscriber stream.Subscriber,
	cfg config.StreamConfig,
	recordRepo repository.Repository[model.LandscapeRecord],
	logger *zap.Logger,
) *RecordSink {
	rs := &RecordSink{
		recordRepo: recordRepo,
		logger:     logger,
	}
	rs.consumer = stream.NewConsumer(
		subscriber,
		cfg.TopicRecords,
		cfg.Partitions,
		cfg.QueueSize,
		rs.handleMessage,
		logger,
	)
	return rs
}

// Start begins consuming and stops again once ctx is done. It returns stream.ErrAlreadyStarted
// when called more than once.
func (rs *RecordSink) Start(ctx context.Context) (func(), error) {
	return rs.consumer.Start(ctx)
}

func (rs *RecordSink) State() stream.State {
	return rs.consumer.State()
}

func (rs *RecordSink) handleMessage(ctx context.Context, msg stream.Message) {
	record, err := stream.Decode[model.LandscapeRecord](msg)
	if err != nil {
		rs.logger.Error("Failed to decode record from stream", zap.String("key", msg.Key), zap.Error(err))
		return
	}
	rs.persist(ctx, record)
}

func (rs *RecordSink) persist(ctx context.Context, record model.LandscapeRecord) {
	err := rs.recordRepo.Add(ctx, record)
	if err != nil {
		rs.logger.Error(
			"Failed to persist a record from stream",
			zap.String("landscape_token", record.LandscapeToken),
			zap.Int64("timestamp", record.Timestamp),
			zap.String("package", record.Package),
			zap.String("class", record.Class),
			zap.String("method", record.Method),
			zap.Error(err),
		)
	}
}
