package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"punch.service/internal/config"
	"punch.service/internal/metrics"
	"punch.service/internal/worker"
	"punch.service/internal/worker/export"
	"punch.service/internal/worker/reportapi"
	"punch.service/pkg/aws"
	"punch.service/pkg/logger"
	"punch.service/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup(cfg.IsLocalDev, "punch-export-worker")

	shutdownTracer, err := telemetry.InitTracer("punch-export-worker", cfg.OtelExporter, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	awsCfg, err := aws.NewAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	processor := export.NewProcessor(reportapi.NewHTTPClient(cfg.ReportAPIURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := worker.NewWorker(sqsClient, cfg.ExportSQSQueueURL, "export", processor, metrics.New())
	app.Concurrency = cfg.WorkerConcurrency

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
	}
	log.Info().Msg("Worker exited gracefully")
}
