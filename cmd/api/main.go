package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmarrero/fanlink-backend/api/routes"
	"github.com/dmarrero/fanlink-backend/internal/campaigns"
	"github.com/dmarrero/fanlink-backend/internal/dispatch"
	"github.com/dmarrero/fanlink-backend/internal/envelope"
	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/follows"
	"github.com/dmarrero/fanlink-backend/internal/inbox"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/internal/messages"
	"github.com/dmarrero/fanlink-backend/internal/posts"
	"github.com/dmarrero/fanlink-backend/internal/users"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
	"github.com/dmarrero/fanlink-backend/pkg/migrate"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/realtime"
	"github.com/dmarrero/fanlink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	postsRepo := posts.NewRepository(gormDB)
	messagesRepo := messages.NewRepository(gormDB)
	followsRepo := follows.NewRepository(gormDB)
	jobsRepo := jobs.NewRepository(gormDB)

	builder, err := envelope.NewBuilder(usersRepo, postsRepo, messagesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create envelope builder", err)
		os.Exit(1)
	}

	rtPublisher, err := realtime.NewRedisPublisher(redisClient, cfg.Realtime)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime publisher", err)
		os.Exit(1)
	}

	mailEnqueuer, err := jobs.NewMailEnqueuer(jobsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail enqueuer", err)
		os.Exit(1)
	}

	pipeline, err := dispatch.NewPipeline(
		dispatch.NewRepository(gormDB),
		rtPublisher,
		mailEnqueuer,
		metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch pipeline", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	dispatcher, err := events.NewDispatcher(builder, pipeline, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event dispatcher", err)
		os.Exit(1)
	}

	locks, err := lock.NewManager(redisClient, cfg.Locks.FollowTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	messagesService, err := messages.NewService(dbClient, messagesRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create messages service", err)
		os.Exit(1)
	}

	followsService, err := follows.NewService(dbClient, followsRepo, dispatcher, jobsRepo, locks, cfg.Locks, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create follows service", err)
		os.Exit(1)
	}

	inboxService, err := inbox.NewService(inbox.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create inbox service", err)
		os.Exit(1)
	}

	campaignsService, err := campaigns.NewService(campaigns.NewRepository(gormDB), followsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create campaigns service", err)
		os.Exit(1)
	}

	gateway, err := realtime.NewGateway(redisClient, cfg.Realtime, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime gateway", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			inboxService,
			messagesService,
			followsService,
			campaignsService,
			gateway,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
