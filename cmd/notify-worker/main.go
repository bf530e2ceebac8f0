package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"punch.service/internal/config"
	"punch.service/internal/core"
	"punch.service/internal/metrics"
	"punch.service/internal/ports/repository"
	"punch.service/internal/worker"
	"punch.service/internal/worker/notify"
	"punch.service/pkg/aws"
	"punch.service/pkg/database"
	"punch.service/pkg/logger"
	"punch.service/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup(cfg.IsLocalDev, "punch-notify-worker")

	shutdownTracer, err := telemetry.InitTracer("punch-notify-worker", cfg.OtelExporter, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening database")
	}
	defer db.Close()
	log.Info().Msg("Successfully connected to the database.")

	awsCfg, err := aws.NewAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	emailService := core.NewSESEmailService(ses.NewFromConfig(awsCfg), cfg.NotifySender)
	processor := notify.NewProcessor(emailService, repository.NewDirectoryRepository(db))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := worker.NewWorker(sqsClient, cfg.NotifySQSQueueURL, "notify", processor, metrics.New())
	app.Concurrency = cfg.WorkerConcurrency

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
	}
	log.Info().Msg("Worker exited gracefully")
}
