// Package config loads harness settings from the environment. Command-line
// flags override individual fields after Load.
package config

import (
	"fmt"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"

	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/session"
	"dev/bravebird/storefront-e2e/pkg/wait"
)

// Config holds every tunable of the harness.
type Config struct {
	BaseURL string `envconfig:"E2E_BASE_URL"`
	APIURL  string `envconfig:"E2E_API_URL"`

	WaitTimeout       time.Duration `envconfig:"E2E_WAIT_TIMEOUT"`
	PollInterval      time.Duration `envconfig:"E2E_POLL_INTERVAL"`
	SettleDelay       time.Duration `envconfig:"E2E_SETTLE_DELAY"`
	DeadlineInclusive bool          `envconfig:"E2E_DEADLINE_INCLUSIVE"`
	CallTimeout       time.Duration `envconfig:"E2E_CALL_TIMEOUT"`

	Headless        bool     `envconfig:"E2E_HEADLESS"`
	WindowWidth     int      `envconfig:"E2E_WINDOW_WIDTH"`
	WindowHeight    int      `envconfig:"E2E_WINDOW_HEIGHT"`
	ChromeBin       string   `envconfig:"CHROME_BIN"`
	BrowserPaths    []string `envconfig:"E2E_BROWSER_PATHS"`
	ManagedDownload bool     `envconfig:"E2E_MANAGED_DOWNLOAD"`

	ScreenshotDir string `envconfig:"E2E_SCREENSHOT_DIR"`
	ReportDir     string `envconfig:"E2E_REPORT_DIR"`

	Username  string `envconfig:"E2E_USERNAME"`
	Password  string `envconfig:"E2E_PASSWORD"`
	UsersFile string `envconfig:"E2E_USERS_FILE"`
	SeedUser  bool   `envconfig:"E2E_SEED_USER"`

	FrontendCmd string        `envconfig:"E2E_FRONTEND_CMD"`
	BackendCmd  string        `envconfig:"E2E_BACKEND_CMD"`
	SpawnWait   time.Duration `envconfig:"E2E_SPAWN_WAIT"`
	MaxFail     int           `envconfig:"E2E_MAXFAIL"`

	MySQLDSN     string `envconfig:"MYSQL_DSN"`
	TemporalHost string `envconfig:"TEMPORAL_HOST"`
	Port         string `envconfig:"PORT"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogFormat    string `envconfig:"LOG_FORMAT"`
}

// Default returns the settings used when the environment is silent.
func Default() Config {
	return Config{
		BaseURL:           "http://localhost:3000",
		APIURL:            "http://localhost:5000",
		WaitTimeout:       10 * time.Second,
		PollInterval:      500 * time.Millisecond,
		SettleDelay:       4 * time.Second,
		DeadlineInclusive: true,
		CallTimeout:       30 * time.Second,
		Headless:          true,
		WindowWidth:       1920,
		WindowHeight:      1080,
		ManagedDownload:   true,
		ScreenshotDir:     "screenshots",
		ReportDir:         ".",
		Username:          "testuser",
		Password:          "password123",
		SpawnWait:         5 * time.Second,
		MaxFail:           5,
		TemporalHost:      "localhost:7233",
		Port:              "8080",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads the configuration from the environment on top of Default.
// Unset variables keep their default.
func Load() (Config, error) {
	c := Default()
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("E2E_BASE_URL must not be empty")
	case c.WaitTimeout <= 0:
		return fmt.Errorf("E2E_WAIT_TIMEOUT must be positive, got %s", c.WaitTimeout)
	case c.PollInterval <= 0:
		return fmt.Errorf("E2E_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	case c.WindowWidth <= 0 || c.WindowHeight <= 0:
		return fmt.Errorf("window size %dx%d is invalid", c.WindowWidth, c.WindowHeight)
	case c.MaxFail < 0:
		return fmt.Errorf("E2E_MAXFAIL must not be negative")
	}
	return nil
}

// Params returns the values substituted into scenario steps.
func (c Config) Params() scenario.Params {
	return scenario.Params{
		scenario.ParamBaseURL:  c.BaseURL,
		scenario.ParamAPIURL:   c.APIURL,
		scenario.ParamUsername: c.Username,
		scenario.ParamPassword: c.Password,
	}
}

// WaitOptions returns waiter settings. A zero settle delay disables it.
func (c Config) WaitOptions(clock wait.Clock) wait.Options {
	settle := c.SettleDelay
	if settle == 0 {
		settle = -1
	}
	return wait.Options{
		Timeout:           c.WaitTimeout,
		Interval:          c.PollInterval,
		Settle:            settle,
		InclusiveDeadline: c.DeadlineInclusive,
		Clock:             clock,
	}
}

// Profile returns the browser startup profile.
func (c Config) Profile() session.Profile {
	return session.NewProfile(
		session.WithHeadless(c.Headless),
		session.WithWindowSize(c.WindowWidth, c.WindowHeight),
	)
}

// Factory builds the session factory for this configuration.
func (c Config) Factory(log logrus.FieldLogger) *session.Factory {
	resolver := session.NewResolver(log, session.DefaultCandidates(c.ChromeBin, c.BrowserPaths, c.ManagedDownload)...)
	return session.NewFactory(c.Profile(), resolver, c.CallTimeout, log)
}
