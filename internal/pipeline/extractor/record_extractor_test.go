package extractor

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
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordExtractor(t *testing.T) {
	cfg := config.StreamConfig{
		TopicTraces:  "traces",
		TopicRecords: "records",
		Partitions:   2,
		QueueSize:    8,
	}

	t.Run("Publishes a record for every well formed span", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		transport := stream.NewEventBusTransport(EventBus.New(), zap.NewNop())
		var mu sync.Mutex
		var records []stream.Message
		_, err := transport.Subscribe("records", func(msg stream.Message) {
			mu.Lock()
			defer mu.Unlock()
			records = append(records, msg)
		})
		require.NoError(t, err)

		re := NewRecordExtractor(transport, transport, cfg, zap.New(core))
		stop, err := re.Start(context.Background())
		require.NoError(t, err)
		defer stop()

		publishSpan(t, transport, getSpan("pkg.sub.Handler.Process"))
		publishSpan(t, transport, getSpan("main"))

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(records) == 1 && logs.Len() == 1
		}, 2*time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "T1", records[0].Key)
		record, err := stream.Decode[landscapeModel.LandscapeRecord](records[0])
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000500), record.Timestamp)
		assert.Equal(t, "pkg.sub", record.Package)
		assert.Equal(t, "Handler", record.Class)
		assert.Equal(t, "Process", record.Method)
		assert.Equal(t, "Dropping span with malformed operation name", logs.All()[0].Message)
	})
}

func publishSpan(t *testing.T, transport *stream.EventBusTransport, span spanModel.Span) {
	t.Helper()
	msg, err := stream.Encode(span.LandscapeToken, span)
	require.NoError(t, err)
	require.NoError(t, transport.Publish(context.Background(), "traces", msg))
}

func getSpan(operationName string) spanModel.Span {
	return spanModel.Span{
		LandscapeToken: "T1",
		StartTime:      spanModel.Timestamp{Seconds: 1700000000, NanoAdjust: 500_000_000},
		HostIPAddress:  "10.0.0.1",
		Hostname:       "h1",
		AppName:        "svc",
		AppPID:         42,
		AppLanguage:    "go",
		OperationName:  operationName,
	}
}
