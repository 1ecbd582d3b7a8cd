package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/config"
	"github.com/skypro1111/transcript-diarizer/internal/diarize"
	"github.com/skypro1111/transcript-diarizer/internal/job"
	"github.com/skypro1111/transcript-diarizer/internal/logging"
	"github.com/skypro1111/transcript-diarizer/internal/metrics"
	"github.com/skypro1111/transcript-diarizer/internal/pipeline"
	"github.com/skypro1111/transcript-diarizer/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "transcript-diarizer"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.Address),
		slog.Int("max_upload_mb", cfg.Server.MaxUploadMB),
		slog.Float64("window_seconds", cfg.Audio.WindowSeconds),
		slog.Float64("max_duration_seconds", cfg.Audio.MaxDurationSeconds),
		slog.String("speaker_strategy", cfg.Features.SpeakerStrategy),
		slog.String("asr_endpoint", cfg.ASR.Endpoint),
		slog.Int("max_concurrent_jobs", cfg.Jobs.MaxConcurrent),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Initialize ASR client
	asrClient, err := asr.NewClient(asr.Config{
		Endpoint:      cfg.ASR.Endpoint,
		APIKey:        cfg.ASR.APIKey,
		Timeout:       cfg.ASR.GetTimeoutDuration(),
		MaxRetries:    cfg.ASR.MaxRetries,
		MaxConcurrent: cfg.ASR.MaxConcurrent,
		RetryBackoff:  cfg.ASR.GetRetryBackoffDuration(),
		Model:         cfg.ASR.Model,
		Language:      cfg.Features.Language,
		ChunkLength:   cfg.ASR.ChunkLength,
		StrideLength:  cfg.ASR.StrideLength,
	}, appMetrics)
	if err != nil {
		logger.Error("Failed to create ASR client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize diarization pipeline
	strategy, err := diarize.StrategyByName(cfg.Features.SpeakerStrategy)
	if err != nil {
		logger.Error("Invalid speaker strategy", slog.String("error", err.Error()))
		os.Exit(1)
	}

	analyzer := diarize.NewAnalyzer(logger, strategy, appMetrics)
	pipe, err := pipeline.New(asrClient, analyzer, pipeline.Options{
		WindowSeconds: cfg.Audio.WindowSeconds,
		MaxDuration:   cfg.Audio.MaxDurationSeconds,
		Language:      cfg.Features.Language,
	}, logger)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize job manager
	processor := func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
		return pipe.Run(ctx, pipeline.Input{Name: name, Data: data}, progress)
	}

	jobMgr, err := job.NewManager(logger, job.Config{
		MaxConcurrent:   cfg.Jobs.MaxConcurrent,
		MaxQueued:       cfg.Jobs.MaxQueued,
		Timeout:         cfg.Jobs.GetTimeoutDuration(),
		Retention:       cfg.Jobs.GetRetentionDuration(),
		CleanupInterval: cfg.Jobs.GetCleanupIntervalDuration(),
	}, processor, appMetrics)
	if err != nil {
		logger.Error("Failed to create job manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Job manager initialized",
		slog.Int("max_concurrent", cfg.Jobs.MaxConcurrent),
		slog.Int("max_queued", cfg.Jobs.MaxQueued),
		slog.Duration("retention", cfg.Jobs.GetRetentionDuration()),
	)

	// Initialize and start HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, pipe, jobMgr, asrClient, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Cancel unfinished jobs and wait for workers
	jobMgr.Stop()

	// Wait for in-flight recognition requests
	asrClient.Close()

	// Get final statistics
	stats := asrClient.GetStats()
	counts := jobMgr.Counts()
	logger.Info("Final service statistics",
		slog.Uint64("asr_requests", stats.TotalRequests),
		slog.Uint64("asr_failures", stats.FailedRequests),
		slog.Int("jobs_completed", counts[job.StatusCompleted]),
		slog.Int("jobs_failed", counts[job.StatusFailed]),
	)

	logger.Info("Service stopped")
}
