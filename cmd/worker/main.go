// Background worker binary: runs the publish, metrics-collection, and
// stuck-post recovery processors against the same Postgres/Redis
// backing store the API binary uses. Composition-root shape (WorkerApp,
// JobProcessor roster, signal-driven graceful shutdown) is carried over
// from the starting codebase's cmd/worker/main.go; the wiring itself now
// builds the domain services, vault, twitter client, and queue this
// repo actually uses instead of the old sqlc persistence layer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/domain/engagement"
	"github.com/vouse/postqueue/internal/domain/user"
	"github.com/vouse/postqueue/internal/metrics"
	"github.com/vouse/postqueue/internal/notify"
	"github.com/vouse/postqueue/internal/queue"
	"github.com/vouse/postqueue/internal/scheduler"
	"github.com/vouse/postqueue/internal/store"
	"github.com/vouse/postqueue/internal/twitter"
	"github.com/vouse/postqueue/internal/vault"

	"gorm.io/gorm"
)

// JobProcessor is the shared contract every worker loop in this binary
// implements.
type JobProcessor interface {
	Name() string
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

// WorkerApp holds all worker dependencies.
type WorkerApp struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Logger     *logrus.Entry
	Processors []JobProcessor
	MetricsSrv *http.Server
}

func main() {
	logger := logrus.NewEntry(logrus.StandardLogger())

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	app, err := NewWorkerApp(logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize worker")
	}
	defer app.Cleanup()

	app.Start()
}

// NewWorkerApp initializes the worker application: connects to
// Postgres and Redis, builds the domain services, and assembles the
// three job processors this binary runs.
func NewWorkerApp(logger *logrus.Entry) (*WorkerApp, error) {
	db, err := store.Connect(databaseDSN())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}
	logger.Info("connected to postgres")

	redisClient, err := connectRedis()
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("connected to redis")

	cipher, err := vault.New(os.Getenv("VAULT_ENCRYPTION_KEY"), logger.WithField("component", "vault"))
	if err != nil {
		return nil, fmt.Errorf("vault init failed: %w", err)
	}

	postRepo := store.NewPostRepository(db)
	userRepo := store.NewUserRepository(db)
	deviceRepo := store.NewDeviceTokenRepository(db)
	engagementRepo := store.NewEngagementRepository(db)

	jobs := queue.New(redisClient, logger.WithField("component", "queue"))

	userSvc := user.NewService(userRepo, deviceRepo, cipher, logger.WithField("component", "user"))

	rateLimiter := twitter.NewRateLimiter()
	twitterCli := twitter.NewClient(os.Getenv("TWITTER_CLIENT_ID"), os.Getenv("TWITTER_CLIENT_SECRET"), rateLimiter)

	metricsFetcher := scheduler.NewTwitterMetricsFetcher(userSvc, twitterCli)
	postLookup := scheduler.NewPostStatusLookup(postRepo)
	engagementSvc := engagement.NewService(engagementRepo, metricsFetcher, postLookup)

	senders := map[user.DevicePlatform]notify.Sender{
		user.PlatformIOS:     notify.NewAPNsSender(os.Getenv("APNS_TOPIC"), staticPushToken("APNS_AUTH_TOKEN")),
		user.PlatformAndroid: notify.NewFCMSender(os.Getenv("FCM_PROJECT_ID"), staticPushToken("FCM_AUTH_TOKEN")),
	}
	notifier := notify.NewNotifier(userSvc, senders, logger.WithField("component", "notify"))

	images := scheduler.NewHTTPImageFetcher()

	collector, err := metrics.New(jobs, queue.QueuePostPublish)
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	publisher := scheduler.NewPublisher(
		postRepo, userSvc, engagementSvc, twitterCli, jobs, images, notifier,
		logger.WithField("component", "publisher"),
	).WithMetrics(collector)

	processors := []JobProcessor{
		NewPublishPostProcessor(jobs, publisher, logger.WithField("processor", "publish")),
		NewMetricsCollectorProcessor(engagementSvc, logger.WithField("processor", "metrics")),
		NewRecoverStuckProcessor(publisher, logger.WithField("processor", "recover")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", collector.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("METRICS_PORT", "9091")),
		Handler: mux,
	}

	return &WorkerApp{DB: db, Redis: redisClient, Logger: logger, Processors: processors, MetricsSrv: metricsSrv}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// staticPushToken reads a bearer token from the environment variable on
// every send, with no refresh of its own; the FCM/APNs SDKs this package would
// otherwise use for OAuth-signed push credentials appear nowhere in the
// example pack, so token refresh is left as an operator-provided value.
func staticPushToken(envVar string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return os.Getenv(envVar), nil
	}
}

// Start starts all job processors and blocks until an interrupt signal
// arrives, then stops them gracefully.
func (app *WorkerApp) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if app.MetricsSrv != nil {
		go func() {
			app.Logger.WithField("addr", app.MetricsSrv.Addr).Info("metrics server starting")
			if err := app.MetricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.Logger.WithError(err).Error("metrics server failed")
			}
		}()
	}

	for _, processor := range app.Processors {
		go func(p JobProcessor) {
			app.Logger.WithField("processor", p.Name()).Info("starting processor")
			if err := p.Run(ctx); err != nil {
				app.Logger.WithField("processor", p.Name()).WithError(err).Error("processor exited with error")
			}
		}(processor)
	}

	app.Logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, processor := range app.Processors {
		if err := processor.Stop(shutdownCtx); err != nil {
			app.Logger.WithField("processor", processor.Name()).WithError(err).Error("failed to stop processor")
		}
	}

	if app.MetricsSrv != nil {
		if err := app.MetricsSrv.Shutdown(shutdownCtx); err != nil {
			app.Logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	app.Logger.Info("worker stopped gracefully")
}

// Cleanup closes all connections.
func (app *WorkerApp) Cleanup() {
	if app.Redis != nil {
		app.Redis.Close()
	}
	if app.DB != nil {
		if sqlDB, err := app.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func databaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"),
	)
}

func connectRedis() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
