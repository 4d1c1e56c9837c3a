package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"dev/bravebird/storefront-e2e/pkg/api"
	"dev/bravebird/storefront-e2e/pkg/config"
	"dev/bravebird/storefront-e2e/pkg/database"
	"dev/bravebird/storefront-e2e/pkg/logging"
	"dev/bravebird/storefront-e2e/pkg/scenario"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("Invalid logging configuration: %v", err)
	}
	log.Info("Starting storefront e2e API server")

	// Initialize database
	store := openStore(cfg, log)
	defer store.Close()

	// Initialize Temporal client
	var temporalClient client.Client
	tc, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logging.NewTemporalLogger(log),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to create Temporal client, runs cannot be started")
	} else {
		temporalClient = tc
		defer tc.Close()
	}

	catalog, err := scenario.Builtin()
	if err != nil {
		log.WithError(err).Fatal("Failed to load scenarios")
	}

	handlers := api.NewHandlers(store, temporalClient, catalog, api.Options{
		ScreenshotDir: cfg.ScreenshotDir,
		Headless:      cfg.Headless,
	}, log)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return
	}

	log.Info("Server stopped")
}

// openStore connects to MySQL when a DSN is configured and falls back to
// memory otherwise.
func openStore(cfg config.Config, log logrus.FieldLogger) database.Store {
	if cfg.MySQLDSN == "" {
		log.Info("MYSQL_DSN not set, keeping runs in memory")
		return database.NewMemoryStore()
	}
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to database, keeping runs in memory")
		return database.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		log.WithError(err).Warn("Failed to migrate database, keeping runs in memory")
		db.Close()
		return database.NewMemoryStore()
	}
	return db
}
