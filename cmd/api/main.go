package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"ragline/internal/blobstore"
	"ragline/internal/config"
	"ragline/internal/embedding"
	"ragline/internal/http"
	"ragline/internal/ingest"
	"ragline/internal/pipeline"
	"ragline/internal/vectorstore"
	"ragline/internal/workflow"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Blob store and workflow history share one badger database.
	blobs, err := blobstore.Open(cfg.BlobDBPath(), false)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	defer func() {
		_ = blobs.Close()
	}()
	slog.Info("Blob store initialized", "path", cfg.BlobDBPath())

	vectors, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	slog.Info("Qdrant client ready", "url", cfg.QdrantURL)

	ingester := ingest.NewService(ingest.NewClient(cfg.IngestAPIURL, cfg.IngestAPIKey))

	embedders := embedding.NewFactory(
		embedding.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey),
		embedding.NewVoyageClient(cfg.VoyageBaseURL, cfg.VoyageAPIKey),
	)

	engine, err := workflow.New(blobs.DB(), cfg.WorkerPoolSize,
		workflow.WithRetryPolicy(workflow.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     cfg.RetryBackoff,
		}),
		workflow.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create workflow engine: %v", err)
	}
	defer engine.Close()

	activities := &pipeline.Activities{
		Blobs:     blobs,
		Ingester:  ingester,
		Embedders: embedders,
		Vectors:   vectors,
	}
	activities.Register(engine)

	// Pick up any orchestration that was in flight when the process last
	// stopped; completed steps replay from history.
	resumed, err := engine.ResumePending(context.Background())
	if err != nil {
		log.Fatalf("Failed to resume pending orchestrations: %v", err)
	}
	if resumed > 0 {
		slog.Info("Resumed pending orchestrations", "count", resumed)
	}

	deps := &http.Deps{
		Engine:          engine,
		Embedders:       embedders,
		Vectors:         vectors,
		PagesPerSection: cfg.PagesPerSection,
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
