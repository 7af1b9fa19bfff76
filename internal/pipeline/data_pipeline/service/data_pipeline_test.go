package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Avi18971911/Reconstructor/internal/config"
	landscapeModel "github.com/Avi18971911/Reconstructor/internal/landscape/model"
	spanModel "github.com/Avi18971911/Reconstructor/internal/span/model"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRecordRepository struct {
	mu      sync.Mutex
	records []landscapeModel.LandscapeRecord
}

func (f *fakeRecordRepository) Add(ctx context.Context, record landscapeModel.LandscapeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecordRepository) snapshot() []landscapeModel.LandscapeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]landscapeModel.LandscapeRecord(nil), f.records...)
}

func TestDataPipeline(t *testing.T) {
	cfg := config.StreamConfig{
		TopicTraces:  "traces",
		TopicRecords: "records",
		Partitions:   2,
		QueueSize:    8,
	}

	t.Run("Persists a record for a published span", func(t *testing.T) {
		transport := stream.NewEventBusTransport(EventBus.New(), zap.NewNop())
		repo := &fakeRecordRepository{}
		dp := NewDataPipeline(transport, transport, cfg, repo, zap.NewNop())

		cleanup, err := dp.Start(context.Background())
		require.NoError(t, err)
		defer cleanup()

		span := spanModel.Span{
			LandscapeToken: "T1",
			StartTime:      spanModel.Timestamp{Seconds: 1700000000, NanoAdjust: 1_000_000},
			HostIPAddress:  "10.0.0.1",
			Hostname:       "h1",
			AppName:        "svc",
			AppPID:         7,
			AppLanguage:    "java",
			OperationName:  "net.explorviz.Greeter.greet",
		}
		msg, err := stream.Encode(span.LandscapeToken, span)
		require.NoError(t, err)
		require.NoError(t, transport.Publish(context.Background(), "traces", msg))

		assert.Eventually(t, func() bool {
			return len(repo.snapshot()) == 1
		}, 2*time.Second, 5*time.Millisecond)

		record := repo.snapshot()[0]
		assert.Equal(t, "T1", record.LandscapeToken)
		assert.Equal(t, int64(1700000000001), record.Timestamp)
		assert.Equal(t, "net.explorviz", record.Package)
		assert.Equal(t, "Greeter", record.Class)
		assert.Equal(t, "greet", record.Method)
	})

	t.Run("Cannot be started twice", func(t *testing.T) {
		transport := stream.NewEventBusTransport(EventBus.New(), zap.NewNop())
		dp := NewDataPipeline(transport, transport, cfg, &fakeRecordRepository{}, zap.NewNop())

		cleanup, err := dp.Start(context.Background())
		require.NoError(t, err)
		defer cleanup()

		_, err = dp.Start(context.Background())
		assert.ErrorIs(t, err, stream.ErrAlreadyStarted)
	})
}
