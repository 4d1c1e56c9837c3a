package report

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/storefront-e2e/pkg/models"
)

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "test_report_20240307_140509.html", FileName(at))
}

func TestWriteInlinesScreenshots(t *testing.T) {
	dir := t.TempDir()
	shot := filepath.Join(dir, "Valid_Login.png")
	require.NoError(t, os.WriteFile(shot, []byte("\x89PNG"), 0o644))

	suite := models.SuiteResult{
		RunID:    "run-1",
		Category: models.CategoryLogin,
		Total:    3,
		Results: []models.ScenarioResult{
			{Name: "Valid Login", Category: models.CategoryLogin, Status: models.StatusPassed, Screenshots: []string{shot}},
			{
				Name: "Unregistered <Login>", Category: models.CategoryLogin, Status: models.StatusFailed,
				ErrorKind: models.ErrorTimeout, ErrorMessage: "timed out after 10s",
				Screenshots: []string{filepath.Join(dir, "gone.png")},
				Steps:       []models.StepResult{{Index: 0, Description: "navigate /login", Status: models.StatusFailed}},
			},
		},
	}
	suite.Tally()
	now := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

	path, err := Write(filepath.Join(dir, "reports"), suite, now)
	require.NoError(t, err)
	assert.Equal(t, "test_report_20240307_140509.html", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Find("tbody tr").Length())
	assert.Contains(t, doc.Find("tbody tr").Eq(1).Text(), "Unregistered <Login>")
	assert.Contains(t, doc.Find(".summary").Text(), "Not run: 1")

	imgs := doc.Find("img")
	require.Equal(t, 1, imgs.Length(), "unreadable screenshots are skipped")
	src, _ := imgs.Attr("src")
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("\x89PNG")), src)
}
