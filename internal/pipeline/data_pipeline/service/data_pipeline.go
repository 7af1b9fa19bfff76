package service

import (
	"context"
	"fmt"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/Avi18971911/Reconstructor/internal/pipeline/extractor"
	"github.com/Avi18971911/Reconstructor/internal/sink"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"go.uber.org/zap"
)

// DataPipeline runs the record extractor and the record sink against one transport,
// so spans published on the traces topic end up persisted.
type DataPipeline struct {
	recordExtractor *extractor.RecordExtractor
	recordSink      *sink.RecordSink
	logger          *zap.Logger
}

func NewDataPipeline(
	subscriber stream.Subscriber,
	publisher stream.Publisher,
	cfg config.StreamConfig,
	recordRepo repository.Repository[model.LandscapeRecord],
	logger *zap.Logger,
) *DataPipeline {
	return &DataPipeline{
		recordExtractor: extractor.NewRecordExtractor(subscriber, publisher, cfg, logger),
		recordSink:      sink.NewRecordSink(subscriber, cfg, recordRepo, logger),
		logger:          logger,
	}
}

// Start starts the sink before the extractor so no extracted record is published
// without a subscriber. The returned func stops both, extractor first.
func (dp *DataPipeline) Start(ctx context.Context) (func(), error) {
	sinkCleanup, err := dp.recordSink.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start record sink: %w", err)
	}
	extractorCleanup, err := dp.recordExtractor.Start(ctx)
	if err != nil {
		sinkCleanup()
		return nil, fmt.Errorf("failed to start record extractor: %w", err)
	}
	dp.logger.Info("Data pipeline started")

	return func() {
		extractorCleanup()
		sinkCleanup()
	}, nil
}
