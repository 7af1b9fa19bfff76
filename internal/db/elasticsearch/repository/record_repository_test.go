package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	dbRepository "github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLandscapeClient struct {
	indexed   map[string]interface{}
	lastQuery map[string]interface{}
	pageSize  int
	sources   []json.RawMessage
	err       error
}

func (f *fakeLandscapeClient) Index(ctx context.Context, index string, id string, document interface{}) error {
	if f.err != nil {
		return f.err
	}
	if f.indexed == nil {
		f.indexed = make(map[string]interface{})
	}
	f.indexed[index+"/"+id] = document
	return nil
}

func (f *fakeLandscapeClient) SearchAfter(
	ctx context.Context,
	query map[string]interface{},
	indices []string,
	pageSize int,
) ([]json.RawMessage, error) {
	f.lastQuery = query
	f.pageSize = pageSize
	return f.sources, f.err
}

func TestRecordRepository_Add(t *testing.T) {
	t.Run("Indexes the record under its id", func(t *testing.T) {
		ac := &fakeLandscapeClient{}
		rr := NewRecordRepository(ac, "records", time.Second, zap.NewNop())
		record := getRecord(1700000000500)

		require.NoError(t, rr.Add(context.Background(), record))
		assert.Equal(t, record, ac.indexed["records/"+record.ID()])
	})

	t.Run("Returns a persisting error on failure", func(t *testing.T) {
		cause := errors.New("cluster unavailable")
		rr := NewRecordRepository(&fakeLandscapeClient{err: cause}, "records", time.Second, zap.NewNop())

		err := rr.Add(context.Background(), getRecord(1))
		var persistingErr *dbRepository.PersistingError
		require.ErrorAs(t, err, &persistingErr)
		assert.ErrorIs(t, err, cause)
	})
}

func TestRecordRepository_FindByToken(t *testing.T) {
	t.Run("Decodes the matching documents", func(t *testing.T) {
		expected := getRecord(1700000000500)
		source, err := json.Marshal(expected)
		require.NoError(t, err)
		ac := &fakeLandscapeClient{sources: []json.RawMessage{source}}
		rr := NewRecordRepository(ac, "records", time.Second, zap.NewNop())

		records, err := rr.FindByToken(context.Background(), "T1", dbRepository.TimeWindow{})
		require.NoError(t, err)
		assert.Equal(t, []model.LandscapeRecord{expected}, records)
	})

	t.Run("Filters by token and time window", func(t *testing.T) {
		from, to := int64(10), int64(20)
		query := getRecordsByTokenQuery("T1", dbRepository.TimeWindow{From: &from, To: &to})

		filters := query["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]map[string]interface{})
		require.Len(t, filters, 2)
		assert.Equal(t, map[string]interface{}{"landscape_token": "T1"}, filters[0]["term"])
		assert.Equal(t,
			map[string]interface{}{"timestamp": map[string]interface{}{"gte": from, "lte": to}},
			filters[1]["range"],
		)
	})

	t.Run("Sorts by timestamp with a tiebreaker for paging", func(t *testing.T) {
		query := getRecordsByTokenQuery("T1", dbRepository.TimeWindow{})
		sort := query["sort"].([]map[string]interface{})
		require.Len(t, sort, 2)
		assert.Equal(t, map[string]interface{}{"order": "asc"}, sort[0]["timestamp"])
		assert.Equal(t, "asc", sort[1]["_shard_doc"])
	})

	t.Run("Returns every record the client pages through", func(t *testing.T) {
		var sources []json.RawMessage
		for i := 0; i < 2*pageSize+1; i++ {
			source, err := json.Marshal(getRecord(int64(i)))
			require.NoError(t, err)
			sources = append(sources, source)
		}
		ac := &fakeLandscapeClient{sources: sources}
		rr := NewRecordRepository(ac, "records", time.Second, zap.NewNop())

		records, err := rr.FindByToken(context.Background(), "T1", dbRepository.TimeWindow{})
		require.NoError(t, err)
		assert.Len(t, records, 2*pageSize+1)
		assert.Equal(t, pageSize, ac.pageSize)
	})

	t.Run("Omits the range without a window", func(t *testing.T) {
		query := getRecordsByTokenQuery("T1", dbRepository.TimeWindow{})
		filters := query["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]map[string]interface{})
		assert.Len(t, filters, 1)
	})

	t.Run("Returns an error for undecodable documents", func(t *testing.T) {
		ac := &fakeLandscapeClient{sources: []json.RawMessage{json.RawMessage(`"not a record"`)}}
		rr := NewRecordRepository(ac, "records", time.Second, zap.NewNop())

		_, err := rr.FindByToken(context.Background(), "T1", dbRepository.TimeWindow{})
		assert.Error(t, err)
	})
}

func getRecord(timestamp int64) model.LandscapeRecord {
	return model.LandscapeRecord{
		LandscapeToken: "T1",
		Timestamp:      timestamp,
		Node:           model.Node{IPAddress: "10.0.0.1", HostName: "h1"},
		Application:    model.Application{Name: "svc", PID: 42, Language: "go"},
		Package:        "pkg.sub",
		Class:          "Handler",
		Method:         "Process",
	}
}
