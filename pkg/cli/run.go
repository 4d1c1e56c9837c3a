package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"dev/bravebird/storefront-e2e/pkg/artifact"
	"dev/bravebird/storefront-e2e/pkg/config"
	"dev/bravebird/storefront-e2e/pkg/database"
	"dev/bravebird/storefront-e2e/pkg/fixtures"
	"dev/bravebird/storefront-e2e/pkg/logging"
	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/preflight"
	"dev/bravebird/storefront-e2e/pkg/report"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/suite"
	"dev/bravebird/storefront-e2e/pkg/temporal/workflows"
	"dev/bravebird/storefront-e2e/pkg/wait"
)

// RunFlags holds the flags for the run command
type RunFlags struct {
	Parallel      int
	NoHTML        bool
	MaxFail       int
	FailFast      bool
	Scenarios     []string
	File          string
	StartServices bool
	Headed        bool
	Temporal      bool
	NoPreflight   bool
}

// NewRunCmd creates the run command
func NewRunCmd(app *App) *cobra.Command {
	flags := &RunFlags{Parallel: 1}

	cmd := &cobra.Command{
		Use:   "run [category]",
		Short: "Run scenarios",
		Long: `Run the scenarios of a category (default: all).

Categories: all, login, register, dashboard, cart, navigation, integration.

Exit status is 0 when every selected scenario passed, 1 when any failed or
did not run, and 2 when the browser or the services under test were
unavailable.

Examples:
  # Run everything
  e2e run

  # Run the cart scenarios four at a time
  e2e run cart --parallel 4

  # Run two scenarios by name and stop at the first failure
  e2e run -k "Login valid credentials" -k "Cart total" --fail-fast`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if cmd.Flags().Changed("maxfail") {
				cfg.MaxFail = flags.MaxFail
			}
			if flags.Headed {
				cfg.Headless = false
			}
			category := ""
			if len(args) == 1 {
				category = args[0]
			}
			return runSuite(cmd.Context(), app, cfg, category, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.Parallel, "parallel", "n", 1, "Number of scenarios to run at once")
	cmd.Flags().BoolVar(&flags.NoHTML, "no-html", false, "Skip the HTML report")
	cmd.Flags().IntVar(&flags.MaxFail, "maxfail", 0, "Stop scheduling after this many failures (0 disables, default from E2E_MAXFAIL)")
	cmd.Flags().BoolVarP(&flags.FailFast, "fail-fast", "x", false, "Stop scheduling after the first failure")
	cmd.Flags().StringArrayVarP(&flags.Scenarios, "scenarios", "k", nil, "Run only the named scenarios (repeatable)")
	cmd.Flags().StringVarP(&flags.File, "file", "f", "", "Load scenarios from a YAML file instead of the built-in catalog")
	cmd.Flags().BoolVar(&flags.StartServices, "start-services", false, "Start the frontend and backend commands before running")
	cmd.Flags().BoolVar(&flags.Headed, "headed", false, "Show the browser window")
	cmd.Flags().BoolVar(&flags.Temporal, "temporal", false, "Run on the Temporal worker instead of in process")
	cmd.Flags().BoolVar(&flags.NoPreflight, "no-preflight", false, "Skip the service reachability check")

	return cmd
}

func loadCatalog(file string) (*scenario.Catalog, error) {
	if file != "" {
		return scenario.LoadFile(file)
	}
	return scenario.Builtin()
}

func runSuite(ctx context.Context, app *App, cfg config.Config, categoryName string, flags *RunFlags) error {
	log := app.log
	category, err := models.ParseCategory(categoryName)
	if err != nil {
		return &ExitError{Code: suite.ExitFatal, Err: err}
	}
	catalog, err := loadCatalog(flags.File)
	if err != nil {
		return &ExitError{Code: suite.ExitFatal, Err: err}
	}
	selected, err := catalog.Select(category, flags.Scenarios)
	if err != nil {
		return &ExitError{Code: suite.ExitFatal, Err: err}
	}
	if len(selected) == 0 {
		return &ExitError{Code: suite.ExitFatal, Err: fmt.Errorf("no scenarios selected for category %s", category)}
	}

	fmt.Fprintf(app.Out, "Running tests: %s (%d scenarios)\n", category, len(selected))
	fmt.Fprintf(app.Out, "Target: %s\n", cfg.BaseURL)
	fmt.Fprintln(app.Out, "--------------------------------------------------")

	if flags.StartServices {
		spawner := preflight.NewSpawner(cfg.SpawnWait, nil, log)
		defer spawner.Stop()
		if err := spawner.Start(ctx, cfg.FrontendCmd, cfg.BackendCmd); err != nil {
			return &ExitError{Code: suite.ExitFatal, Err: err}
		}
	}

	if cfg.SeedUser {
		fx := fixtures.NewClient(cfg.APIURL, cfg.CallTimeout, log)
		if err := fx.SeedUser(ctx, cfg.Username, cfg.Password); err != nil {
			log.WithError(err).Warn("Could not seed the test user")
		}
	}

	runID := uuid.New().String()
	var res models.SuiteResult
	if flags.Temporal {
		res, err = runOnTemporal(ctx, app, cfg, models.SuiteInput{
			RunID:     runID,
			Category:  category,
			Scenarios: flags.Scenarios,
			Parallel:  flags.Parallel,
			MaxFail:   cfg.MaxFail,
			FailFast:  flags.FailFast,
			Headless:  cfg.Headless,
		})
		if err != nil {
			return &ExitError{Code: suite.ExitFatal, Err: err}
		}
		printer := &resultPrinter{w: app.Out}
		for _, r := range res.Results {
			printer.print(r)
		}
	} else {
		res = runLocal(ctx, app, cfg, selected, suite.Options{
			RunID:    runID,
			Category: category,
			Parallel: flags.Parallel,
			MaxFail:  cfg.MaxFail,
			FailFast: flags.FailFast,
		}, !flags.NoPreflight)
		saveResult(ctx, app, cfg, res)
	}

	printSummary(app.Out, res)

	if !flags.NoHTML {
		path, err := report.Write(cfg.ReportDir, res, app.Now())
		if err != nil {
			log.WithError(err).Warn("Failed to write HTML report")
		} else {
			fmt.Fprintf(app.Out, "📊 HTML report generated: %s\n", path)
		}
	}

	if code := suite.ExitCode(res); code != suite.ExitPassed {
		return &ExitError{Code: code}
	}
	return nil
}

func runLocal(ctx context.Context, app *App, cfg config.Config, selected []scenario.Scenario, opts suite.Options, preflightCheck bool) models.SuiteResult {
	log := app.log
	clock := wait.RealClock()
	waiter := wait.New(cfg.WaitOptions(clock), log)
	recorder := artifact.NewRecorder(cfg.ScreenshotDir, log)
	runner := scenario.NewRunner(waiter, recorder, cfg.Params(), log)

	if preflightCheck {
		checker := preflight.NewChecker(cfg.CallTimeout, log)
		targets := preflight.Targets(cfg.BaseURL, cfg.APIURL)
		opts.Preflight = func(ctx context.Context) error {
			return checker.Check(ctx, targets...)
		}
	}
	printer := &resultPrinter{w: app.Out}
	opts.OnStart = func(name string) {
		log.WithField("scenario", name).Debug("Starting scenario")
	}
	opts.OnResult = printer.print

	exec := suite.NewExecutor(app.opener(cfg), runner, clock, log)
	return exec.Run(ctx, selected, opts)
}

func runOnTemporal(ctx context.Context, app *App, cfg config.Config, input models.SuiteInput) (models.SuiteResult, error) {
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logging.NewTemporalLogger(app.log),
	})
	if err != nil {
		return models.SuiteResult{}, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	defer c.Close()

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "suite-" + input.RunID,
		TaskQueue: workflows.TaskQueue,
	}, workflows.SuiteWorkflow, input)
	if err != nil {
		return models.SuiteResult{}, fmt.Errorf("failed to start workflow: %w", err)
	}
	app.log.WithField("workflow_id", we.GetID()).Info("Suite submitted to Temporal")

	var res models.SuiteResult
	if err := we.Get(ctx, &res); err != nil {
		return models.SuiteResult{}, fmt.Errorf("suite workflow failed: %w", err)
	}
	return res, nil
}

// saveResult stores a local run when a database is configured. Failures
// only warn: the console and report already carry the outcome.
func saveResult(ctx context.Context, app *App, cfg config.Config, res models.SuiteResult) {
	if cfg.MySQLDSN == "" {
		return
	}
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		app.log.WithError(err).Warn("Results not saved")
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		app.log.WithError(err).Warn("Results not saved")
		return
	}
	if err := database.SaveSuite(ctx, db, res); err != nil {
		app.log.WithError(err).Warn("Results not saved")
		return
	}
	app.log.WithField("run_id", res.RunID).Info("Results saved")
}
