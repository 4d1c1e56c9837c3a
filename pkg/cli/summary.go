package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"dev/bravebird/storefront-e2e/pkg/models"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	warnLabel = color.New(color.FgYellow, color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
)

// resultPrinter writes one line per finished scenario. It is safe for
// concurrent use.
type resultPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *resultPrinter) print(r models.ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dur := dim(fmt.Sprintf("(%s)", time.Duration(r.Duration)*time.Millisecond))
	switch r.Status {
	case models.StatusPassed:
		fmt.Fprintf(p.w, "%s %s %s\n", passLabel("PASS"), r.Name, dur)
	case models.StatusCanceled:
		fmt.Fprintf(p.w, "%s %s %s\n", warnLabel("CANCELED"), r.Name, dur)
	default:
		label := "FAIL"
		if r.Status == models.StatusError {
			label = "ERROR"
		}
		fmt.Fprintf(p.w, "%s %s %s\n", failLabel(label), r.Name, dur)
		if r.ErrorMessage != "" {
			fmt.Fprintf(p.w, "    [%s] %s\n", r.ErrorKind, r.ErrorMessage)
		}
		for _, s := range r.Screenshots {
			fmt.Fprintf(p.w, "    screenshot: %s\n", s)
		}
	}
}

func printSummary(w io.Writer, res models.SuiteResult) {
	fmt.Fprintln(w, strings.Repeat("=", 50))
	if res.Status == models.StatusPassed {
		fmt.Fprintln(w, passLabel("✅ All tests completed successfully!"))
	} else {
		fmt.Fprintln(w, failLabel("❌ Tests failed!"))
	}

	parts := []string{
		fmt.Sprintf("%d passed", res.Passed),
		fmt.Sprintf("%d failed", res.Failed),
	}
	if res.NotRun > 0 {
		parts = append(parts, fmt.Sprintf("%d not run", res.NotRun))
	}
	fmt.Fprintf(w, "%s of %d in %s\n", strings.Join(parts, ", "), res.Total, time.Duration(res.Duration)*time.Millisecond)

	if res.Fatal != "" {
		fmt.Fprintf(w, "%s %s\n", failLabel("Fatal:"), res.Fatal)
	}
}
