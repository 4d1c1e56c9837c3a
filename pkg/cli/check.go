package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dev/bravebird/storefront-e2e/pkg/preflight"
	"dev/bravebird/storefront-e2e/pkg/session"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

// NewCheckCmd creates the check command
func NewCheckCmd(app *App) *cobra.Command {
	var skipDriver bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the services and a browser are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.cfg
			ok := true

			checker := preflight.NewChecker(cfg.CallTimeout, app.log)
			for _, t := range preflight.Targets(cfg.BaseURL, cfg.APIURL) {
				if err := checker.Ping(ctx, t); err != nil {
					ok = false
					fmt.Fprintf(app.Out, "%s %s %s\n", failLabel("✗"), t.Name, dim(err.Error()))
					continue
				}
				fmt.Fprintf(app.Out, "%s %s %s\n", passLabel("✓"), t.Name, dim(t.URL))
			}

			if !skipDriver {
				resolver := session.NewResolver(app.log, session.DefaultCandidates(cfg.ChromeBin, cfg.BrowserPaths, cfg.ManagedDownload)...)
				res, err := resolver.Resolve(ctx)
				if err != nil {
					ok = false
					fmt.Fprintf(app.Out, "%s browser %s\n", failLabel("✗"), dim(err.Error()))
				} else {
					fmt.Fprintf(app.Out, "%s browser %s\n", passLabel("✓"), dim(fmt.Sprintf("%s (%s)", res.Path, res.Candidate)))
				}
			}

			if !ok {
				return &ExitError{Code: suite.ExitFatal}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipDriver, "skip-driver", false, "Only check the services")
	return cmd
}

// NewInstallDriverCmd creates the install-driver command
func NewInstallDriverCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install-driver",
		Short: "Download the managed browser build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := session.Managed{}.Resolve(cmd.Context())
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: fmt.Errorf("%w: %w", session.ErrDriverUnavailable, err)}
			}
			fmt.Fprintf(app.Out, "%s browser installed at %s\n", passLabel("✓"), path)
			return nil
		},
	}
}
