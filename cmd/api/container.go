package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vouse/postqueue/internal/domain/engagement"
	"github.com/vouse/postqueue/internal/domain/post"
	"github.com/vouse/postqueue/internal/domain/user"
	"github.com/vouse/postqueue/internal/httpapi"
	"github.com/vouse/postqueue/internal/identity"
	"github.com/vouse/postqueue/internal/metrics"
	"github.com/vouse/postqueue/internal/notify"
	"github.com/vouse/postqueue/internal/queue"
	"github.com/vouse/postqueue/internal/scheduler"
	"github.com/vouse/postqueue/internal/store"
	"github.com/vouse/postqueue/internal/twitter"
	"github.com/vouse/postqueue/internal/vault"

	"github.com/redis/go-redis/v9"
)

// Container holds every dependency the API binary wires up, assembled
// once at startup and handed to the router. Grounded on the starting
// codebase's Container/NewContainer shape, narrowed from its
// use-case-per-endpoint application layer down to the domain Services
// this repo's httpapi handlers call directly.
type Container struct {
	Config *Config
	DB     *gorm.DB
	Redis  *redis.Client
	Logger *logrus.Entry

	Vault      *vault.Vault
	Verifier   identity.Verifier
	TwitterCli *twitter.Client
	Queue      *queue.Queue
	Metrics    *metrics.Collector

	Users       *user.Service
	Posts       *post.Service
	Engagements *engagement.Service
	Publisher   *scheduler.Publisher
	Notifier    *notify.Notifier

	Handlers httpapi.Handlers
}

// NewContainer builds the Container from config and an open database
// connection.
func NewContainer(cfg *Config, db *gorm.DB, logger *logrus.Entry) (*Container, error) {
	c := &Container{Config: cfg, DB: db, Logger: logger}

	if err := c.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("infrastructure init failed: %w", err)
	}
	if err := c.initDomainServices(); err != nil {
		return nil, fmt.Errorf("domain service init failed: %w", err)
	}
	c.initHandlers()

	return c, nil
}

func (c *Container) initInfrastructure() error {
	redisClient := redis.NewClient(&redis.Options{Addr: c.Config.RedisAddr()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	c.Redis = redisClient

	v, err := vault.New(c.Config.Vault.EncryptionKey, c.Logger.WithField("component", "vault"))
	if err != nil {
		return fmt.Errorf("vault init failed: %w", err)
	}
	c.Vault = v

	verifier, err := c.buildVerifier()
	if err != nil {
		return fmt.Errorf("identity verifier init failed: %w", err)
	}
	c.Verifier = verifier

	c.TwitterCli = twitter.NewClient(c.Config.Twitter.ClientID, c.Config.Twitter.ClientSecret, twitter.NewRateLimiter())
	c.Queue = queue.New(c.Redis, c.Logger.WithField("component", "queue"))

	m, err := metrics.New(c.Queue, queue.QueuePostPublish)
	if err != nil {
		return fmt.Errorf("metrics init failed: %w", err)
	}
	c.Metrics = m

	return nil
}

// buildVerifier picks an OIDC trust root in production or falls back to
// the shared-secret HMAC verifier for local/dev environments, per
// AuthConfig.UseOIDC.
func (c *Container) buildVerifier() (identity.Verifier, error) {
	if c.Config.Auth.UseOIDC {
		return identity.NewOIDCVerifier(context.Background(), c.Config.Auth.IssuerURL, c.Config.Auth.Audience)
	}
	return identity.NewHMACVerifier(c.Config.Auth.HMACSecret), nil
}

func (c *Container) initDomainServices() error {
	postRepo := store.NewPostRepository(c.DB)
	userRepo := store.NewUserRepository(c.DB)
	deviceRepo := store.NewDeviceTokenRepository(c.DB)
	engagementRepo := store.NewEngagementRepository(c.DB)

	postScheduler := queue.NewPostScheduler(c.Queue)

	c.Users = user.NewService(userRepo, deviceRepo, c.Vault, c.Logger.WithField("component", "user"))
	c.Posts = post.NewService(postRepo, postScheduler)

	metricsFetcher := scheduler.NewTwitterMetricsFetcher(c.Users, c.TwitterCli)
	postLookup := scheduler.NewPostStatusLookup(postRepo)
	c.Engagements = engagement.NewService(engagementRepo, metricsFetcher, postLookup)

	senders := map[user.DevicePlatform]notify.Sender{
		user.PlatformIOS:     notify.NewAPNsSender(c.Config.Push.APNsTopic, staticToken(c.Config.Push.APNsAuthToken)),
		user.PlatformAndroid: notify.NewFCMSender(c.Config.Push.FCMProjectID, staticToken(c.Config.Push.FCMAuthToken)),
	}
	c.Notifier = notify.NewNotifier(c.Users, senders, c.Logger.WithField("component", "notify"))

	images := scheduler.NewHTTPImageFetcher()
	c.Publisher = scheduler.NewPublisher(
		postRepo, c.Users, c.Engagements, c.TwitterCli, c.Queue, images, c.Notifier,
		c.Logger.WithField("component", "publisher"),
	).WithMetrics(c.Metrics)

	return nil
}

func staticToken(token string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func (c *Container) initHandlers() {
	c.Handlers = httpapi.Handlers{
		Auth:        identity.NewMiddleware(c.Verifier),
		Users:       httpapi.NewUserHandler(c.Users, c.TwitterCli),
		Posts:       httpapi.NewPostHandler(c.Posts),
		Engagements: httpapi.NewEngagementHandler(c.Engagements, c.Logger.WithField("component", "engagements_api")),
		Metrics:     c.Metrics,
	}
}

// Cleanup releases the container's connections.
func (c *Container) Cleanup() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
