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
	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/httpapi"
	"github.com/vouse/postqueue/internal/store"
)

// App is the running API server and the container it was wired from.
type App struct {
	Container *Container
	Server    *http.Server
	Logger    *logrus.Entry
}

func main() {
	logger := logrus.NewEntry(logrus.StandardLogger())

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	app, err := NewApp(logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize application")
	}

	app.Start()
}

// NewApp loads configuration, connects to Postgres, assembles the
// Container, and builds the HTTP server. Grounded on the starting
// codebase's NewApp/setupDatabase shape, now pointed at gorm and
// internal/httpapi's router instead of sqlc and the old handlers
// package.
func NewApp(logger *logrus.Entry) (*App, error) {
	cfg := LoadConfig()

	db, err := store.Connect(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("database setup failed: %w", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}
	logger.Info("connected to postgres")

	container, err := NewContainer(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("container initialization failed: %w", err)
	}
	logger.Info("dependencies initialized")

	router := httpapi.NewRouter(container.Handlers)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &App{Container: container, Server: server, Logger: logger}, nil
}

// Start runs the HTTP server and blocks until an interrupt signal
// triggers a graceful shutdown.
func (app *App) Start() {
	go func() {
		app.Logger.WithField("addr", app.Server.Addr).Info("server starting")
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		app.Logger.WithError(err).Fatal("server forced to shutdown")
	}

	app.Container.Cleanup()
	app.Logger.Info("server gracefully stopped")
}
