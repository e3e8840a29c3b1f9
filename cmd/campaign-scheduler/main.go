package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmarrero/fanlink-backend/internal/campaigns"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
	"github.com/dmarrero/fanlink-backend/pkg/migrate"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "campaign-scheduler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "campaign-scheduler"

	logg = logger.New(logger.Options{
		ServiceName: "campaign-scheduler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	locks, err := lock.NewManager(redisClient, cfg.Campaigns.ClaimLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	scheduler, err := campaigns.NewScheduler(campaigns.SchedulerParams{
		Logger:  logg,
		Repo:    campaigns.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Emitter: outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Locks:   locks,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Campaigns,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting campaign scheduler")

	go serveMetrics(ctx, logg, cfg.App.MetricsPort)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "campaign scheduler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "campaign scheduler shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
