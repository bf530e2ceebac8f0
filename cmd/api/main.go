// Entry point for REST API
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"punch.service/internal/api"
	"punch.service/internal/config"
	"punch.service/internal/core"
	"punch.service/internal/core/clock"
	"punch.service/internal/core/model"
	"punch.service/internal/metrics"
	"punch.service/internal/ports/lock"
	"punch.service/internal/ports/messaging"
	"punch.service/internal/ports/repository"
	"punch.service/pkg/aws"
	"punch.service/pkg/database"
	"punch.service/pkg/logger"
	"punch.service/pkg/redis"
	"punch.service/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup(cfg.IsLocalDev, "punch-api")

	shutdownTracer, err := telemetry.InitTracer("punch-api", cfg.OtelExporter, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	ctx := context.Background()

	endOfShift, err := model.ParseTimeOfDay(cfg.DefaultEndOfShift)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid DEFAULT_END_OF_SHIFT")
	}
	orgClock, err := clock.NewLocal(clock.NewRealTimeClock(), cfg.OrgTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ORG_TIMEZONE")
	}

	db, err := database.NewInstrumentedConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening database")
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("Successfully connected to the database.")

	awsCfg, err := aws.NewAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	m := metrics.New()
	var settings repository.SettingsStore = repository.NewSettingsRepository(db, endOfShift)
	opts := []core.Option{
		core.WithProducer(messaging.NewSQSProducer(sqs.NewFromConfig(awsCfg), cfg.ExportSQSQueueURL, cfg.NotifySQSQueueURL)),
		core.WithMetrics(m),
		core.WithRetry(core.RetryPolicy{MaxAttempts: cfg.PunchMaxAttempts, Base: cfg.PunchRetryBase, Max: time.Second}),
	}
	checks := map[string]api.HealthCheck{"database": db.PingContext}

	rdb, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
		// Replicas share the per-badge lock and the settings cache.
		opts = append(opts, core.WithLocker(lock.NewRedisLocker(rdb.Client)))
		settings = repository.NewCachedSettings(settings, rdb.Client, cfg.SettingsCacheTTL)
		checks["redis"] = rdb.Health
		log.Info().Msg("Using Redis for punch locks and settings cache.")
	} else {
		log.Warn().Msg("REDIS_URL not set; punches are serialized per process only.")
	}

	service := core.NewPunchService(
		repository.NewPunchRepository(db),
		repository.NewDirectoryRepository(db),
		settings,
		orgClock,
		opts...,
	)

	router := api.NewRouter(service, checks)

	// Middleware to inject logger with trace ID
	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.EnrichContextWithLogger(r.Context())))
		})
	}

	// Wrap the router with OpenTelemetry middleware to create spans for each request
	handler := otelhttp.NewHandler(loggerMiddleware(router), "api")

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("API Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// The server has 5 seconds to finish the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
