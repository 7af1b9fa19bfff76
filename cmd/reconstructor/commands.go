package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	traceServer "github.com/Avi18971911/Reconstructor/internal/otel_server/trace/server"
	"github.com/Avi18971911/Reconstructor/internal/pipeline/data_pipeline/service"
	"github.com/Avi18971911/Reconstructor/internal/pipeline/extractor"
	"github.com/Avi18971911/Reconstructor/internal/query_server/router"
	"github.com/Avi18971911/Reconstructor/internal/sink"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"github.com/spf13/cobra"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

const shutdownTimeout = 10 * time.Second

func ingestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Receive OTLP spans and extract landscape records from them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			t, closeTransport, err := newTransport(cfg.Stream, logger)
			if err != nil {
				return err
			}
			defer closeTransport()

			re := extractor.NewRecordExtractor(t, t, cfg.Stream, logger)
			extractorCleanup, err := re.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start record extractor: %w", err)
			}
			defer extractorCleanup()

			return runReceiver(ctx, cfg, t, logger)
		},
	}
}

func sinkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sink",
		Short: "Persist landscape records from the records topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			t, closeTransport, err := newTransport(cfg.Stream, logger)
			if err != nil {
				return err
			}
			defer closeTransport()

			store, closeStore, err := newRecordStore(cfg.Persistence, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			recordSink := sink.NewRecordSink(t, cfg.Stream, store, logger)
			sinkCleanup, err := recordSink.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start record sink: %w", err)
			}
			defer sinkCleanup()

			logger.Info("Record sink started", zap.String("topic", cfg.Stream.TopicRecords))
			<-ctx.Done()
			return nil
		},
	}
}

func queryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Serve persisted landscape records over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := newRecordStore(cfg.Persistence, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			return runQueryServer(ctx, cfg.QueryServer, store, logger)
		},
	}
}

func standaloneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "standalone",
		Short: "Run receiver, extractor, sink and query server in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg.Stream.Transport = config.TransportMemory
			t, closeTransport, err := newTransport(cfg.Stream, logger)
			if err != nil {
				return err
			}
			defer closeTransport()

			store, closeStore, err := newRecordStore(cfg.Persistence, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			dataPipeline := service.NewDataPipeline(t, t, cfg.Stream, store, logger)
			pipelineCleanup, err := dataPipeline.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start data pipeline: %w", err)
			}
			defer pipelineCleanup()

			errs := make(chan error, 2)
			go func() {
				errs <- runQueryServer(ctx, cfg.QueryServer, store, logger)
			}()
			go func() {
				errs <- runReceiver(ctx, cfg, t, logger)
			}()

			err = <-errs
			stop()
			if secondErr := <-errs; err == nil {
				err = secondErr
			}
			return err
		},
	}
}

// runReceiver serves the OTLP trace service until ctx is done.
func runReceiver(ctx context.Context, cfg *config.Config, publisher stream.Publisher, logger *zap.Logger) error {
	seenSpans, err := newSeenSpansCache()
	if err != nil {
		return err
	}
	defer seenSpans.Close()

	listener, err := net.Listen("tcp", cfg.Receiver.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Receiver.ListenAddress, err)
	}

	srv := grpc.NewServer()
	traceServiceServer := traceServer.NewTraceServiceServerImpl(
		logger,
		publisher,
		cfg.Stream.TopicTraces,
		seenSpans,
		cfg.Receiver.DedupeTTL,
	)
	protoTrace.RegisterTraceServiceServer(srv, traceServiceServer)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("gRPC service started, listening for OpenTelemetry traces...", zap.String("address", cfg.Receiver.ListenAddress))
	if err := srv.Serve(listener); err != nil {
		return fmt.Errorf("failed to serve OTLP traces: %w", err)
	}
	return nil
}

func runQueryServer(
	ctx context.Context,
	cfg config.QueryServerConfig,
	reader repository.RecordReader,
	logger *zap.Logger,
) error {
	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router.CreateRouter(reader, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down query server", zap.Error(err))
		}
	}()

	logger.Info("Starting query server", zap.String("address", cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve queries: %w", err)
	}
	return nil
}
