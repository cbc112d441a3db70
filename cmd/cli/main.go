package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/ledger-insights/internal/analytics"
	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/fixtures"
	"github.com/dvloznov/ledger-insights/internal/gcs"
	infraBQ "github.com/dvloznov/ledger-insights/internal/infra/bigquery"
	"github.com/dvloznov/ledger-insights/internal/insights"
	"github.com/dvloznov/ledger-insights/internal/logger"
	"github.com/dvloznov/ledger-insights/internal/metrics"
	"github.com/dvloznov/ledger-insights/internal/pipeline"
	"github.com/dvloznov/ledger-insights/internal/sources"
	datasetStore "github.com/dvloznov/ledger-insights/internal/store/inmemory"
	"github.com/rs/zerolog"
)

func main() {
	log, err := logger.NewWithOptions(os.Stderr, envOr("LEDGER_LOGGING_LEVEL", "info"), logger.FormatConsole)
	if err != nil {
		log = logger.New()
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(log)
	case "generate":
		runGenerate(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Clean a ledger and print its metrics as JSON")
	fmt.Println("  generate  Write a messy sample ledger")
	fmt.Println("  upload    Upload a local ledger to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nLedgers are local paths, gs://bucket/object URIs or bq://dataset.table references.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func runAnalyze(log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	source := fs.String("source", "", "Ledger to analyze: local path, gs:// URI or bq://dataset.table")
	startDate := fs.String("start-date", "", "First day to include (YYYY-MM-DD)")
	endDate := fs.String("end-date", "", "Last day to include (YYYY-MM-DD)")
	projectID := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "BigQuery project for bq:// sources")
	fs.Parse(os.Args[2:])

	if *source == "" {
		log.Fatal().Msg("Error: --source is required")
	}

	dateRange, err := analytics.ParseDateRange(*startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date range")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, closeLoader, err := newLoader(ctx, *source, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare ledger source")
	}
	defer closeLoader()

	table, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	service := insights.NewService(pipeline.NewCleaner(), datasetStore.NewStore(), metrics.NewRecorder())
	dataset, err := service.Ingest(ctx, table)
	if err != nil {
		log.Fatal().Err(err).Msg("Cleaning failed")
	}

	bundle, err := service.Analyze(ctx, insights.Request{Range: dateRange})
	if err != nil && !domain.IsEmptyAfterFilter(err) {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	bundle.CleaningSummary = &dataset.Summary

	out, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode metrics")
	}
	fmt.Println(string(out))
}

// newLoader creates only the cloud clients the source needs.
func newLoader(ctx context.Context, source, projectID string) (*sources.Loader, func(), error) {
	switch sources.KindOf(source) {
	case sources.KindGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sources.NewLoader(client, nil, false), func() { client.Close() }, nil
	case sources.KindBigQuery:
		if projectID == "" {
			return nil, nil, fmt.Errorf("--project is required for BigQuery sources")
		}
		reader, err := infraBQ.NewLedgerReader(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		return sources.NewLoader(nil, reader, false), func() { reader.Close() }, nil
	default:
		return sources.NewLoader(nil, nil, true), func() {}, nil
	}
}

func runGenerate(log zerolog.Logger) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "messy_transactions.csv", "Output path or gs:// URI")
	records := fs.Int("records", fixtures.DefaultRecords, "Number of rows to generate")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed")
	fs.Parse(os.Args[2:])

	var buf bytes.Buffer
	stats, err := fixtures.Generate(&buf, fixtures.Options{Records: *records, Seed: *seed})
	if err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
	}

	if sources.KindOf(*out) == sources.KindGCS {
		ctx := logger.WithContext(context.Background(), log)
		client, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer client.Close()

		if err := client.Upload(ctx, *out, "text/csv", buf.Bytes()); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
	} else if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write ledger")
	}

	log.Info().
		Int("records", stats.Records).
		Int("blank_amounts", stats.BlankAmounts).
		Int("invalid_amounts", stats.InvalidAmounts).
		Int("blank_timestamps", stats.BlankTimestamps).
		Int("duplicate_ids", stats.DuplicateIDs).
		Int("negative_amounts", stats.NegativeAmounts).
		Int64("seed", *seed).
		Msg("Generated messy ledger")

	fmt.Printf("Generated %d records in %s\n", stats.Records, *out)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local ledger file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx := logger.WithContext(context.Background(), log)
	uri := gcs.URIScheme + *bucketName + "/" + *objectName

	log.Info().
		Str("file", *filePath).
		Str("gcs_uri", uri).
		Msg("Uploading ledger to GCS")

	client, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer client.Close()

	if err := client.Upload(ctx, uri, contentTypeFor(*filePath), data); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func contentTypeFor(path string) string {
	if filepath.Ext(path) == ".xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
