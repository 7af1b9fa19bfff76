package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/client"
	dbRepository "github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"go.uber.org/zap"
)

const pageSize = 1000

// RecordRepository stores landscape records as documents keyed by LandscapeRecord.ID.
type RecordRepository struct {
	ac      client.LandscapeClient
	index   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewRecordRepository(
	ac client.LandscapeClient,
	index string,
	timeout time.Duration,
	logger *zap.Logger,
) *RecordRepository {
	return &RecordRepository{
		ac:      ac,
		index:   index,
		timeout: timeout,
		logger:  logger,
	}
}

func (rr *RecordRepository) Add(ctx context.Context, record model.LandscapeRecord) error {
	indexCtx, cancel := context.WithTimeout(ctx, rr.timeout)
	defer cancel()
	if err := rr.ac.Index(indexCtx, rr.index, record.ID(), record); err != nil {
		return dbRepository.NewPersistingError("index", err)
	}
	return nil
}

func (rr *RecordRepository) FindByToken(
	ctx context.Context,
	landscapeToken string,
	window dbRepository.TimeWindow,
) ([]model.LandscapeRecord, error) {
	searchCtx, cancel := context.WithTimeout(ctx, rr.timeout)
	defer cancel()
	sources, err := rr.ac.SearchAfter(searchCtx, getRecordsByTokenQuery(landscapeToken, window), []string{rr.index}, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search records of landscape %s: %w", landscapeToken, err)
	}

	records := make([]model.LandscapeRecord, 0, len(sources))
	for _, source := range sources {
		var record model.LandscapeRecord
		if err := json.Unmarshal(source, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record document: %w", err)
		}
		records = append(records, record)
	}
	rr.logger.Debug(
		"Found landscape records",
		zap.String("landscape_token", landscapeToken),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func getRecordsByTokenQuery(landscapeToken string, window dbRepository.TimeWindow) map[string]interface{} {
	filters := []map[string]interface{}{
		{
			"term": map[string]interface{}{
				"landscape_token": landscapeToken,
			},
		},
	}
	if window.From != nil || window.To != nil {
		bounds := map[string]interface{}{}
		if window.From != nil {
			bounds["gte"] = *window.From
		}
		if window.To != nil {
			bounds["lte"] = *window.To
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": bounds,
			},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "asc",
				},
			},
			{
				"_shard_doc": "asc",
			},
		},
	}
}
