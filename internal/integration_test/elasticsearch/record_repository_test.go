package elasticsearch

import (
	"context"
	"testing"
	"time"

	"github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/client"
	esRepository "github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/repository"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRepository(t *testing.T) {
	if es == nil {
		t.Error("es is uninitialized or otherwise nil")
	}
	ac := client.NewLandscapeClientImpl(es, client.Wait)
	repo := esRepository.NewRecordRepository(ac, testIndexName, 5*time.Second, logger)

	t.Run("Finds stored records of a landscape in timestamp order", func(t *testing.T) {
		t.Cleanup(func() {
			require.NoError(t, deleteAllDocumentsFromIndex(es, testIndexName))
		})
		late := getRecord("T1", 3000, "process")
		early := getRecord("T1", 1000, "accept")
		other := getRecord("T2", 2000, "accept")
		for _, record := range []model.LandscapeRecord{late, early, other} {
			require.NoError(t, repo.Add(context.Background(), record))
		}

		records, err := repo.FindByToken(context.Background(), "T1", repository.TimeWindow{})
		require.NoError(t, err)
		assert.Equal(t, []model.LandscapeRecord{early, late}, records)

		from := int64(2000)
		records, err = repo.FindByToken(context.Background(), "T1", repository.TimeWindow{From: &from})
		require.NoError(t, err)
		assert.Equal(t, []model.LandscapeRecord{late}, records)
	})

	t.Run("Stores a redelivered record once", func(t *testing.T) {
		t.Cleanup(func() {
			require.NoError(t, deleteAllDocumentsFromIndex(es, testIndexName))
		})
		record := getRecord("T1", 1000, "accept")
		require.NoError(t, repo.Add(context.Background(), record))
		require.NoError(t, repo.Add(context.Background(), record))

		count, err := countDocuments(es, testIndexName)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func getRecord(token string, timestamp int64, method string) model.LandscapeRecord {
	return model.LandscapeRecord{
		LandscapeToken: token,
		Timestamp:      timestamp,
		Node:           model.Node{IPAddress: "10.0.0.1", HostName: "h1"},
		Application:    model.Application{Name: "svc", PID: 42, Language: "java"},
		Package:        "net.explorviz",
		Class:          "Greeter",
		Method:         method,
	}
}
