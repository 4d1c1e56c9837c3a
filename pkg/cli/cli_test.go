package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/storefront-e2e/pkg/config"
	"dev/bravebird/storefront-e2e/pkg/page/pagetest"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/suite"
)

const table = `
category: login
scenarios:
  - name: Opens login
    steps:
      - action: assert_url
        value: /login
  - name: Reaches dashboard
    steps:
      - action: assert_url
        value: /dashboard
`

const recordingJSON = `{"events": [
  {"type": 4, "timestamp": 1000, "data": {"href": "http://localhost:3000/login", "width": 1280, "height": 800}},
  {"type": 2, "timestamp": 1001, "data": {"node": {"id": 1, "type": 0, "childNodes": [
    {"id": 2, "type": 2, "tagName": "input", "attributes": {"placeholder": "Username", "type": "text"}}
  ]}}},
  {"type": 3, "timestamp": 1500, "data": {"source": 5, "id": 2, "text": "testuser"}}
]}`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type pageSession struct{ *pagetest.Page }

func (pageSession) Close() error { return nil }

type harness struct {
	app *App
	out *bytes.Buffer
	dir string
}

// newHarness points the configuration at a local server and opens fake
// sessions on <base>/login.
func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("E2E_BASE_URL", srv.URL)
	t.Setenv("E2E_API_URL", srv.URL)
	t.Setenv("E2E_SETTLE_DELAY", "0")
	t.Setenv("E2E_CALL_TIMEOUT", "2s")
	t.Setenv("E2E_SCREENSHOT_DIR", filepath.Join(dir, "shots"))
	t.Setenv("E2E_REPORT_DIR", dir)
	t.Setenv("E2E_SEED_USER", "false")
	t.Setenv("MYSQL_DSN", "")

	out := &bytes.Buffer{}
	app := &App{
		Out: out,
		Err: &bytes.Buffer{},
		Now: NewApp().Now,
		Opener: func(cfg config.Config, _ logrus.FieldLogger) suite.Opener {
			return suite.OpenerFunc(func(context.Context) (suite.Session, error) {
				return pageSession{pagetest.New(cfg.BaseURL + "/login")}, nil
			})
		},
	}
	return &harness{app: app, out: out, dir: dir}
}

func (h *harness) writeTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(h.dir, "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))
	return path
}

func (h *harness) run(args ...string) int {
	return Execute(context.Background(), h.app, args)
}

func TestListBuiltin(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, suite.ExitPassed, h.run("list", "cart"))

	catalog, err := scenario.Builtin()
	require.NoError(t, err)
	for _, sc := range catalog.All() {
		if sc.Category == "cart" {
			assert.Contains(t, h.out.String(), sc.Name)
		}
	}
	assert.Contains(t, h.out.String(), "CATEGORY")
}

func TestListUnknownCategory(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, suite.ExitFatal, h.run("list", "checkout"))
}

func TestRunPassingSelection(t *testing.T) {
	h := newHarness(t)
	file := h.writeTable(t)

	code := h.run("run", "--file", file, "-k", "Opens login")
	require.Equal(t, suite.ExitPassed, code, h.out.String())
	assert.Contains(t, h.out.String(), "PASS Opens login")
	assert.Contains(t, h.out.String(), "All tests completed successfully")
	assert.Contains(t, h.out.String(), "HTML report generated")

	reports, err := filepath.Glob(filepath.Join(h.dir, "*.html"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRunWithFailure(t *testing.T) {
	h := newHarness(t)
	file := h.writeTable(t)

	code := h.run("run", "login", "--file", file, "--no-html", "--parallel", "2")
	require.Equal(t, suite.ExitFailed, code, h.out.String())
	assert.Contains(t, h.out.String(), "FAIL Reaches dashboard")
	assert.Contains(t, h.out.String(), "1 passed, 1 failed")

	reports, err := filepath.Glob(filepath.Join(h.dir, "*.html"))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestRunFailFastLeavesScenariosNotRun(t *testing.T) {
	h := newHarness(t)
	file := h.writeTable(t)

	code := h.run("run", "--file", file, "--no-html", "-k", "Reaches dashboard", "-k", "Opens login", "--fail-fast")
	require.Equal(t, suite.ExitFailed, code, h.out.String())
	assert.Contains(t, h.out.String(), "1 not run")
}

func TestRunUnreachableServiceIsFatal(t *testing.T) {
	h := newHarness(t)
	file := h.writeTable(t)
	t.Setenv("E2E_API_URL", "http://127.0.0.1:1")

	code := h.run("run", "--file", file, "--no-html")
	require.Equal(t, suite.ExitFatal, code, h.out.String())
	assert.Contains(t, h.out.String(), "Fatal:")
	assert.Contains(t, h.out.String(), "2 not run")
}

func TestRunRejectsBadSelection(t *testing.T) {
	h := newHarness(t)
	file := h.writeTable(t)

	assert.Equal(t, suite.ExitFatal, h.run("run", "checkout"))
	assert.Equal(t, suite.ExitFatal, h.run("run", "--file", file, "-k", "Nope"))
	assert.Equal(t, suite.ExitFatal, h.run("run", "cart", "--file", file))
}

func TestCheckSkipDriver(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, suite.ExitPassed, h.run("check", "--skip-driver"))
	assert.Contains(t, h.out.String(), "✓ frontend")
	assert.Contains(t, h.out.String(), "✓ backend")

	h = newHarness(t)
	t.Setenv("E2E_API_URL", "http://127.0.0.1:1")
	assert.Equal(t, suite.ExitFatal, h.run("check", "--skip-driver"))
	assert.Contains(t, h.out.String(), "✗ backend")
}

func TestImportRecording(t *testing.T) {
	h := newHarness(t)
	in := filepath.Join(h.dir, "signin.json")
	require.NoError(t, os.WriteFile(in, []byte(recordingJSON), 0o644))
	out := filepath.Join(h.dir, "signin.yaml")

	code := h.run("import", in, "--category", "login", "--base-url", "http://localhost:3000", "--out", out)
	require.Equal(t, suite.ExitPassed, code, h.out.String())

	catalog, err := scenario.LoadFile(out)
	require.NoError(t, err)
	sc, ok := catalog.Get("signin")
	require.True(t, ok)
	assert.Equal(t, "login", string(sc.Category))
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, "/login", sc.Steps[0].Value)
	assert.Equal(t, "testuser", sc.Steps[1].Value)
}

func TestImportNeedsConcreteCategory(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, suite.ExitFatal, h.run("import", "missing.json", "--category", "all"))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
	err := &ExitError{Code: 2, Err: assert.AnError}
	assert.Equal(t, assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
}
