package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/ledger-insights/internal/api"
	"github.com/dvloznov/ledger-insights/internal/api/handlers"
	"github.com/dvloznov/ledger-insights/internal/config"
	"github.com/dvloznov/ledger-insights/internal/gcs"
	infraBQ "github.com/dvloznov/ledger-insights/internal/infra/bigquery"
	"github.com/dvloznov/ledger-insights/internal/insights"
	"github.com/dvloznov/ledger-insights/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-insights/internal/logger"
	"github.com/dvloznov/ledger-insights/internal/metrics"
	"github.com/dvloznov/ledger-insights/internal/pipeline"
	"github.com/dvloznov/ledger-insights/internal/sources"
	datasetStore "github.com/dvloznov/ledger-insights/internal/store/inmemory"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to a YAML config file (or set LEDGER_CONFIG env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log, err := logger.NewWithOptions(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	ctx := context.Background()

	recorder := metrics.NewRecorder()
	service := insights.NewService(pipeline.NewCleaner(), datasetStore.NewStore(), recorder)

	deps := api.RouterDeps{
		Config:   cfg,
		Analyzer: service,
		Metrics:  recorder.Handler(),
		Log:      log,
	}

	// Background imports from Cloud Storage and BigQuery
	var queue *inmemory.Queue
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if cfg.Imports.Enabled {
		storageClient, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storageClient.Close()

		ledgerReader, err := infraBQ.NewLedgerReader(ctx, cfg.Imports.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery reader")
		}
		defer ledgerReader.Close()

		loader := sources.NewLoader(storageClient, ledgerReader, false)
		jobStore := inmemory.NewStore()
		queue = inmemory.NewQueue(inmemory.QueueOptions{
			BufferSize: cfg.Imports.QueueSize,
			Workers:    cfg.Imports.Workers,
			MaxRetries: cfg.Imports.MaxRetries,
		}, jobStore)

		log.Info().Int("workers", cfg.Imports.Workers).Msg("Starting import workers")
		if err := queue.Start(workerCtx, service.ImportHandler(loader)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start import workers")
		}

		deps.Imports = handlers.NewImportsHandler(queue, jobStore, loader, log)
	} else {
		log.Info().Msg("Imports disabled - only direct uploads are accepted")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop import workers and wait for in-flight jobs
	if queue != nil {
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping import queue")
		}
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
