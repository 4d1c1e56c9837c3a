// Package report renders a self-contained HTML report for a suite run.
package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"dev/bravebird/storefront-e2e/pkg/models"
)

//go:embed templates/report.html
var reportHTML string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"stamp": func(t time.Time) string { return t.Format("20060102_150405") },
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).Round(10 * time.Millisecond).String()
	},
}).Parse(reportHTML))

type image struct {
	Name string
	Data template.URL
}

type scenarioView struct {
	Result models.ScenarioResult
	Images []image
}

type reportView struct {
	Suite     models.SuiteResult
	Generated time.Time
	Scenarios []scenarioView
}

// FileName returns the timestamped report name for t.
func FileName(t time.Time) string {
	return "test_report_" + t.Format("20060102_150405") + ".html"
}

// Render writes the report to w. Screenshots are inlined as data URIs;
// files that can no longer be read are left out.
func Render(w io.Writer, suite models.SuiteResult, generated time.Time) error {
	view := reportView{Suite: suite, Generated: generated}
	for _, r := range suite.Results {
		sv := scenarioView{Result: r}
		for _, path := range r.Screenshots {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			sv.Images = append(sv.Images, image{
				Name: filepath.Base(path),
				Data: template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)),
			})
		}
		view.Scenarios = append(view.Scenarios, sv)
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Write renders the report into dir and returns its path.
func Write(dir string, suite models.SuiteResult, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := Render(f, suite, now); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
