package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/recording"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

// ImportFlags holds the flags for the import command
type ImportFlags struct {
	Name     string
	Category string
	Out      string
	BaseURL  string
}

// NewImportCmd creates the import command
func NewImportCmd(app *App) *cobra.Command {
	flags := &ImportFlags{}

	cmd := &cobra.Command{
		Use:   "import <recording.json>",
		Short: "Convert an rrweb recording into a scenario table",
		Long: `Convert an rrweb recording into a scenario table that run --file can load.

The table is written to --out, or to stdout when --out is empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := models.ParseCategory(flags.Category)
			if err != nil || category == models.CategoryAll {
				return &ExitError{Code: suite.ExitFatal, Err: fmt.Errorf("import needs a concrete category, got %q", flags.Category)}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}
			defer f.Close()

			events, err := recording.ParseEvents(f)
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}

			baseURL := flags.BaseURL
			if baseURL == "" {
				baseURL = app.cfg.BaseURL
			}
			conv := recording.NewConverter(baseURL)
			if err := conv.Process(events); err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}

			name := flags.Name
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			sc, err := conv.Scenario(name, category)
			if err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}

			var w io.Writer = app.Out
			if flags.Out != "" {
				out, err := os.Create(flags.Out)
				if err != nil {
					return &ExitError{Code: suite.ExitFatal, Err: err}
				}
				defer out.Close()
				w = out
			}
			if err := recording.Export(w, category, sc); err != nil {
				return &ExitError{Code: suite.ExitFatal, Err: err}
			}

			app.log.WithField("steps", len(sc.Steps)).WithField("name", sc.Name).Info("Recording imported")
			if flags.Out != "" {
				fmt.Fprintf(app.Out, "%s wrote %s (%d steps)\n", passLabel("✓"), flags.Out, len(sc.Steps))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "Scenario name (default: the file name)")
	cmd.Flags().StringVarP(&flags.Category, "category", "c", string(models.CategoryIntegration), "Category of the imported scenario")
	cmd.Flags().StringVarP(&flags.Out, "out", "o", "", "Output YAML file")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Origin stripped from recorded navigations (default: E2E_BASE_URL)")
	return cmd
}
