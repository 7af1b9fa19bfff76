package main

import (
	"fmt"

	"github.com/Avi18971911/Reconstructor/internal/config"
	chRepository "github.com/Avi18971911/Reconstructor/internal/db/clickhouse"
	"github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/client"
	esRepository "github.com/Avi18971911/Reconstructor/internal/db/elasticsearch/repository"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"github.com/asaskevich/EventBus"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

type transport interface {
	stream.Publisher
	stream.Subscriber
}

type recordStore interface {
	repository.Repository[model.LandscapeRecord]
	repository.RecordReader
}

// newTransport connects the configured broker. The returned func releases it.
func newTransport(cfg config.StreamConfig, logger *zap.Logger) (transport, func(), error) {
	switch cfg.Transport {
	case config.TransportNats:
		nt, err := stream.NewNatsTransport(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return nt, nt.Close, nil
	case config.TransportMemory:
		et := stream.NewEventBusTransport(EventBus.New(), logger)
		return et, et.Wait, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
	}
}

// newRecordStore opens the configured backend and prepares its index or table.
func newRecordStore(cfg config.PersistenceConfig, logger *zap.Logger) (recordStore, func(), error) {
	switch cfg.Backend {
	case config.BackendElasticsearch:
		es, err := client.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		bs := bootstrapper.NewBootstrapper(es, logger)
		if err := bs.BootstrapElasticsearch(cfg.Elasticsearch.Index); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		ac := client.NewLandscapeClientImpl(es, client.RefreshRate(cfg.Elasticsearch.Refresh))
		return esRepository.NewRecordRepository(ac, cfg.Elasticsearch.Index, cfg.Timeout, logger), func() {}, nil
	case config.BackendClickHouse:
		conn, err := chRepository.Connect(cfg.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				logger.Error("Failed to close clickhouse connection", zap.Error(err))
			}
		}
		return chRepository.NewRecordRepository(conn, cfg.Timeout, logger), closeConn, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

func newSeenSpansCache() (*ristretto.Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e6,
		MaxCost:            1e5,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create span cache: %w", err)
	}
	return cache, nil
}
