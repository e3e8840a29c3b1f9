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
	"github.com/dmarrero/fanlink-backend/internal/consumers"
	"github.com/dmarrero/fanlink-backend/internal/dispatch"
	"github.com/dmarrero/fanlink-backend/internal/envelope"
	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/follows"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/internal/messages"
	"github.com/dmarrero/fanlink-backend/internal/posts"
	"github.com/dmarrero/fanlink-backend/internal/users"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/mailer"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
	"github.com/dmarrero/fanlink-backend/pkg/migrate"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/idempotency"
	"github.com/dmarrero/fanlink-backend/pkg/pubsub"
	"github.com/dmarrero/fanlink-backend/pkg/realtime"
	"github.com/dmarrero/fanlink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	postsRepo := posts.NewRepository(gormDB)
	messagesRepo := messages.NewRepository(gormDB)
	jobsRepo := jobs.NewRepository(gormDB)
	campaignsRepo := campaigns.NewRepository(gormDB)

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

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
	pipeline, err := dispatch.NewPipeline(
		dispatch.NewRepository(gormDB),
		rtPublisher,
		mailEnqueuer,
		dispatchMetrics,
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

	messagesService, err := messages.NewService(dbClient, messagesRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create messages service", err)
		os.Exit(1)
	}

	mailSender, err := mailer.NewHTTPSender(cfg.Mail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail sender", err)
		os.Exit(1)
	}

	locks, err := lock.NewManager(redisClient, cfg.Locks.NotifyJobTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerParams{
		Logger:  logg,
		Repo:    jobsRepo,
		Locks:   locks,
		Metrics: dispatchMetrics,
		Config:  cfg.Jobs,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job worker", err)
		os.Exit(1)
	}

	handlers := []jobs.Handler{}

	mailHandler, err := jobs.NewMailHandler(usersRepo, mailSender)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail handler", err)
		os.Exit(1)
	}
	handlers = append(handlers, mailHandler)

	automatedHandler, err := messages.NewAutomatedMessageHandler(messagesService)
	if err != nil {
		logg.Error(context.Background(), "failed to create automated message handler", err)
		os.Exit(1)
	}
	handlers = append(handlers, automatedHandler)

	followHandler, err := follows.NewFollowNotificationHandler(builder, pipeline)
	if err != nil {
		logg.Error(context.Background(), "failed to create follow notification handler", err)
		os.Exit(1)
	}
	handlers = append(handlers, followHandler)

	deliveryHandler, err := campaigns.NewDeliveryHandler(campaignsRepo, builder, pipeline)
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign delivery handler", err)
		os.Exit(1)
	}
	handlers = append(handlers, deliveryHandler)

	for _, handler := range handlers {
		if err := worker.Register(handler); err != nil {
			logg.Error(context.Background(), "failed to register job handler", err)
			os.Exit(1)
		}
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.DispatchIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := consumers.NewDispatcher(idempotencyManager, builder, pipeline, jobsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	go serveMetrics(ctx, logg, cfg.App.MetricsPort)

	go func() {
		if err := consumer.Run(ctx, pubsubClient.EventsSubscription()); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "event consumer stopped unexpectedly", err)
			stop()
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
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
