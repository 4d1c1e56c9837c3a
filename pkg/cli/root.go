// Package cli implements the e2e command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dev/bravebird/storefront-e2e/pkg/config"
	"dev/bravebird/storefront-e2e/pkg/logging"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

// App carries what every command shares.
type App struct {
	Out io.Writer
	Err io.Writer

	// Opener returns the session opener for a run. Nil opens real browser
	// sessions from the configuration.
	Opener func(cfg config.Config, log logrus.FieldLogger) suite.Opener
	Now    func() time.Time

	cfg config.Config
	log *logrus.Logger
}

// NewApp returns an App writing to the process streams.
func NewApp() *App {
	return &App{Out: os.Stdout, Err: os.Stderr, Now: time.Now}
}

func (a *App) opener(cfg config.Config) suite.Opener {
	if a.Opener != nil {
		return a.Opener(cfg, a.log)
	}
	return suite.FactoryOpener(cfg.Factory(a.log))
}

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewRootCmd creates the e2e command tree.
func NewRootCmd(app *App) *cobra.Command {
	var (
		logLevel  string
		logFormat string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "e2e",
		Short: "Storefront end-to-end test harness",
		Long: `e2e drives a real browser through the storefront's user journeys:
login, registration, dashboard, cart, navigation and integration flows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if verbose {
				cfg.LogLevel = "debug"
			}
			log, err := logging.NewWithOutput(app.Err, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			app.cfg, app.log = cfg, log
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json, raw)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(
		NewRunCmd(app),
		NewCheckCmd(app),
		NewInstallDriverCmd(app),
		NewListCmd(app),
		NewImportCmd(app),
		NewCleanupCmd(app),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return suite.ExitPassed
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintln(app.Err, "Error:", exit.Err)
		}
		return exit.Code
	}
	fmt.Fprintln(app.Err, "Error:", err)
	return suite.ExitFatal
}
