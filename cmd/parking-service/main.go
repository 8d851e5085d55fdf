package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"parking-service/internal/cache"
	"parking-service/internal/clock"
	"parking-service/internal/config"
	"parking-service/internal/db"
	"parking-service/internal/events"
	httphandler "parking-service/internal/http"
	"parking-service/internal/lock"
	"parking-service/internal/logger"
	"parking-service/internal/metrics"
	"parking-service/internal/repository"
	"parking-service/internal/service"
	"parking-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("parking service stopped")
	}
	appLogger.Info().Msg("server exited")
}

// run owns every resource it opens; each one is released by a defer before
// run returns, including on setup errors.
func run(cfg *config.Config, appLogger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	redisClient, err := db.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				appLogger.Warn().Err(err).Msg("failed to close redis client")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(cfg.MetricsEnabled, registry)

	var locker lock.Locker = lock.NewKeyedMutex()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient,
			lock.WithTTL(cfg.Redis.LockTTL),
			lock.WithOnLost(func(key string, err error) {
				appLogger.Warn().Err(err).Str("plate", key).Msg("plate lock expired while held")
			}),
		)
	} else {
		appLogger.Warn().Msg("REDIS_URL not set, plate locks are local to this instance")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka)
	switch {
	case err == nil:
		publisher = kafkaPublisher
	case errors.Is(err, events.ErrNoBrokers):
		appLogger.Warn().Msg("KAFKA_BROKERS not set, session events will not be published")
	default:
		return fmt.Errorf("initialize kafka publisher: %w", err)
	}
	defer publisher.Close()

	var archiver service.ReportArchiver
	r2Client, err := storage.NewR2Client(cfg.R2)
	switch {
	case err == nil:
		archiver = r2Client
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("R2 storage not configured, violation reports will not be archived")
	default:
		return fmt.Errorf("initialize R2 client: %w", err)
	}

	rates := cache.NewRateCache(repository.NewRateRepository(database), cfg.Cache.SizeMB, cfg.Cache.TTL, recorder, appLogger)

	parkingService := service.NewParkingService(
		repository.NewSessionRepository(database),
		rates,
		repository.NewObservationRepository(database),
		appLogger,
		service.WithClock(clock.NewSystem(cfg.Location)),
		service.WithLocation(cfg.Location),
		service.WithLocker(locker),
		service.WithPublisher(publisher),
		service.WithMetrics(recorder),
	)

	reportJob := service.NewReportJob(parkingService, archiver, cfg.Report.Interval, cfg.Report.ObservationRetention, recorder, appLogger)
	go reportJob.Run(ctx)

	checks := map[string]httphandler.HealthCheck{
		"database": func(ctx context.Context) error { return db.HealthCheck(ctx, database) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if kafkaPublisher != nil {
		checks["kafka"] = kafkaPublisher.Ping
	}

	routerOpts := httphandler.RouterOptions{
		Environment: cfg.Environment,
		Checks:      checks,
		Metrics:     recorder,
		Log:         appLogger,
	}
	if cfg.MetricsEnabled {
		routerOpts.MetricsHandler = metrics.Handler(registry)
	}

	handler := httphandler.NewHandler(parkingService, appLogger)
	router := httphandler.NewRouter(handler, routerOpts)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().
		Str("addr", addr).
		Str("timezone", cfg.Location.String()).
		Msg("starting parking service")

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}
	return nil
}
