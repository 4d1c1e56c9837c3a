package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/storefront-e2e/pkg/artifact"
	"dev/bravebird/storefront-e2e/pkg/config"
	"dev/bravebird/storefront-e2e/pkg/database"
	"dev/bravebird/storefront-e2e/pkg/logging"
	"dev/bravebird/storefront-e2e/pkg/preflight"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/suite"
	"dev/bravebird/storefront-e2e/pkg/temporal/activities"
	"dev/bravebird/storefront-e2e/pkg/temporal/workflows"
	"dev/bravebird/storefront-e2e/pkg/wait"
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

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logging.NewTemporalLogger(log),
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create Temporal client")
	}
	defer c.Close()

	catalog, err := scenario.Builtin()
	if err != nil {
		log.WithError(err).Fatal("Failed to load scenarios")
	}

	store := openStore(cfg, log)
	defer store.Close()

	waiter := wait.New(cfg.WaitOptions(wait.RealClock()), log)
	recorder := artifact.NewRecorder(cfg.ScreenshotDir, log)

	// Create activities
	acts := &activities.Activities{
		Catalog: catalog,
		Runner:  scenario.NewRunner(waiter, recorder, cfg.Params(), log),
		OpenerFor: func(headless bool) suite.Opener {
			run := cfg
			run.Headless = headless
			return suite.FactoryOpener(run.Factory(log))
		},
		Checker: preflight.NewChecker(cfg.CallTimeout, log),
		Targets: preflight.Targets(cfg.BaseURL, cfg.APIURL),
		Store:   store,
	}

	// Create worker
	w := worker.New(c, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	// Register workflows and activities
	w.RegisterWorkflow(workflows.SuiteWorkflow)
	w.RegisterActivity(acts)

	log.WithFields(logrus.Fields{
		"task_queue": workflows.TaskQueue,
		"temporal":   cfg.TemporalHost,
		"target":     cfg.BaseURL,
	}).Info("Starting Temporal worker")

	// Start worker
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.WithError(err).Fatal("Worker failed")
	}
}

// openStore connects to MySQL when a DSN is configured. Without one the
// worker keeps nothing: the API server owns the in-memory store.
func openStore(cfg config.Config, log logrus.FieldLogger) database.Store {
	if cfg.MySQLDSN == "" {
		log.Warn("MYSQL_DSN not set, suite results will not be persisted")
		return database.NewMemoryStore()
	}
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	return db
}
