package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/model"
	"github.com/elastic/go-elasticsearch/v8"
)

const (
	DefaultPageSize = 1000
	pitKeepAlive    = "1m"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

type LandscapeClient interface {
	// Index indexes (inserts or replaces) a single document under the given id
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-index_.html
	Index(ctx context.Context, index string, id string, document interface{}) error
	// SearchAfter returns the raw _source of every hit of the query, paging with search_after
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/paginate-search-results.html#search-after
	// pageSize is the number of hits fetched per request, 0 for default
	SearchAfter(ctx context.Context, query map[string]interface{}, indices []string, pageSize int) ([]json.RawMessage, error)
}

type LandscapeClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewLandscapeClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *LandscapeClientImpl {
	return &LandscapeClientImpl{es: es, refreshRate: string(refreshRate)}
}

func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return es, nil
}

func (a *LandscapeClientImpl) Index(
	ctx context.Context,
	index string,
	id string,
	document interface{},
) error {
	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("error marshaling document to index: %w", err)
	}

	res, err := a.es.Index(
		index,
		bytes.NewReader(body),
		a.es.Index.WithDocumentID(id),
		a.es.Index.WithContext(ctx),
		a.es.Index.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error indexing document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index error: %s", res.String())
	}
	return nil
}

// SearchAfter pages through a point in time until every hit has been read. The query must
// sort on a unique tiebreaker such as _shard_doc, since the sort values of the last hit
// of a page become the search_after of the next one.
func (a *LandscapeClientImpl) SearchAfter(
	ctx context.Context,
	query map[string]interface{},
	indices []string,
	pageSize int,
) ([]json.RawMessage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pitID, err := a.openPointInTime(ctx, indices)
	if err != nil {
		return nil, err
	}
	defer func() {
		// an unclosed point in time expires after pitKeepAlive
		_ = a.closePointInTime(context.WithoutCancel(ctx), pitID)
	}()

	results := make([]json.RawMessage, 0)
	var searchAfter json.RawMessage
	for {
		page, err := a.searchPage(ctx, buildSearchWithPitQuery(query, pitID, pageSize, searchAfter))
		if err != nil {
			return nil, err
		}
		if page.PitID != "" {
			pitID = page.PitID
		}
		hits := page.Hits.HitArray
		for _, hit := range hits {
			results = append(results, hit.Source)
		}
		if len(hits) < pageSize || len(hits[len(hits)-1].Sort) == 0 {
			return results, nil
		}
		searchAfter = hits[len(hits)-1].Sort
	}
}

func (a *LandscapeClientImpl) searchPage(ctx context.Context, query map[string]interface{}) (*model.EsResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("error marshaling query: %w", err)
	}

	res, err := a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var esResponse model.EsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return &esResponse, nil
}

func (a *LandscapeClientImpl) openPointInTime(ctx context.Context, indices []string) (string, error) {
	res, err := a.es.OpenPointInTime(
		indices,
		pitKeepAlive,
		a.es.OpenPointInTime.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("failed to open point in time: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("failed to open point in time: %s", res.String())
	}

	var pitResponse struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&pitResponse); err != nil {
		return "", fmt.Errorf("failed to read pit id: %w", err)
	}
	if pitResponse.ID == "" {
		return "", fmt.Errorf("point in time response has no id")
	}
	return pitResponse.ID, nil
}

func (a *LandscapeClientImpl) closePointInTime(ctx context.Context, pitID string) error {
	body, err := json.Marshal(map[string]interface{}{"id": pitID})
	if err != nil {
		return fmt.Errorf("failed to encode close PIT request: %w", err)
	}

	res, err := a.es.ClosePointInTime(
		a.es.ClosePointInTime.WithBody(bytes.NewReader(body)),
		a.es.ClosePointInTime.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to close PIT: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to close PIT: %s", res.String())
	}
	return nil
}

// buildSearchWithPitQuery copies query and adds the point in time, page size and cursor.
// Searches against a point in time must not name an index.
func buildSearchWithPitQuery(
	query map[string]interface{},
	pitID string,
	pageSize int,
	searchAfter json.RawMessage,
) map[string]interface{} {
	pitQuery := make(map[string]interface{}, len(query)+3)
	for key, value := range query {
		pitQuery[key] = value
	}
	pitQuery["pit"] = map[string]interface{}{
		"id":         pitID,
		"keep_alive": pitKeepAlive,
	}
	pitQuery["size"] = pageSize
	if len(searchAfter) > 0 {
		pitQuery["search_after"] = searchAfter
	}
	return pitQuery
}
