package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/storefront-e2e/pkg/scenario"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", c.BaseURL)
	assert.Equal(t, "http://localhost:5000", c.APIURL)
	assert.Equal(t, 10*time.Second, c.WaitTimeout)
	assert.Equal(t, 500*time.Millisecond, c.PollInterval)
	assert.Equal(t, 4*time.Second, c.SettleDelay)
	assert.True(t, c.DeadlineInclusive)
	assert.True(t, c.Headless)
	assert.Equal(t, 1920, c.WindowWidth)
	assert.Equal(t, 1080, c.WindowHeight)
	assert.Equal(t, "screenshots", c.ScreenshotDir)
	assert.Equal(t, 5, c.MaxFail)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("E2E_BASE_URL", "http://shop.test")
	t.Setenv("E2E_WAIT_TIMEOUT", "3s")
	t.Setenv("E2E_SETTLE_DELAY", "250ms")
	t.Setenv("E2E_DEADLINE_INCLUSIVE", "false")
	t.Setenv("E2E_HEADLESS", "false")
	t.Setenv("E2E_BROWSER_PATHS", "/opt/chrome,/usr/bin/chromium")
	t.Setenv("E2E_USERNAME", "alice")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://shop.test", c.BaseURL)
	assert.Equal(t, 3*time.Second, c.WaitTimeout)
	assert.False(t, c.DeadlineInclusive)
	assert.False(t, c.Headless)
	assert.Equal(t, []string{"/opt/chrome", "/usr/bin/chromium"}, c.BrowserPaths)

	p := c.Params()
	assert.Equal(t, "alice", p[scenario.ParamUsername])
	assert.Equal(t, "http://shop.test/login", p.URL("/login"))

	opts := c.WaitOptions(nil)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, 250*time.Millisecond, opts.Settle)
	assert.False(t, opts.InclusiveDeadline)

	assert.False(t, c.Profile().Headless())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("E2E_WAIT_TIMEOUT", "0s")
	_, err := Load()
	assert.ErrorContains(t, err, "E2E_WAIT_TIMEOUT")
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("E2E_WINDOW_WIDTH", "wide")
	_, err := Load()
	assert.Error(t, err)
}

func TestZeroSettleDisables(t *testing.T) {
	c := Config{SettleDelay: 0}
	assert.Negative(t, c.WaitOptions(nil).Settle)
}
