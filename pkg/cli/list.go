package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

// NewListCmd creates the list command
func NewListCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list [category]",
		Short: "List scenarios",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			category, err := models.ParseCategory(name)
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}
			catalog, err := loadCatalog(file)
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}
			selected, err := catalog.Select(category, nil)
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}

			tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tSCENARIO\tSTEPS")
			for _, sc := range selected {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", sc.Category, sc.Name, len(sc.Steps))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "\n%d scenarios\n", len(selected))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Load scenarios from a YAML file instead of the built-in catalog")
	return cmd
}
