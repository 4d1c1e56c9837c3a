package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dev/bravebird/storefront-e2e/pkg/fixtures"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd(app *App) *cobra.Command {
	var usersFile string

	cmd := &cobra.Command{
		Use:   "cleanup [username...]",
		Short: "Clear test users' carts and remove them from the users file",
		Long: `Clear the carts of the given users and remove them from the backend
users file. With no arguments the configured test user is cleaned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if !cmd.Flags().Changed("users-file") {
				usersFile = cfg.UsersFile
			}
			usernames := args
			if len(usernames) == 0 {
				usernames = []string{cfg.Username}
			}

			fx := fixtures.NewClient(cfg.APIURL, cfg.CallTimeout, app.log)
			if err := fx.Cleanup(cmd.Context(), usersFile, usernames...); err != nil {
				return &ExitError{Code: suite.ExitFailed, Err: err}
			}
			fmt.Fprintf(app.Out, "%s cleaned %d users\n", passLabel("✓"), len(usernames))
			return nil
		},
	}

	cmd.Flags().StringVar(&usersFile, "users-file", "", "Backend users.json to prune (default: E2E_USERS_FILE)")
	return cmd
}
