// Package preflight checks that the storefront frontend and backend are
// reachable before a suite starts, and can start them when asked.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev/bravebird/storefront-e2e/pkg/wait"
)

// ErrServiceUnreachable is returned when an origin does not answer at all.
var ErrServiceUnreachable = errors.New("service unreachable")

// Target is an origin to check.
type Target struct {
	Name string
	URL  string
}

// Targets returns the default frontend and backend targets.
func Targets(baseURL, apiURL string) []Target {
	return []Target{
		{Name: "frontend", URL: baseURL},
		{Name: "backend", URL: strings.TrimRight(apiURL, "/") + "/cart/test"},
	}
}

// Checker issues GET requests against targets.
type Checker struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewChecker creates a Checker whose requests time out after timeout.
func NewChecker(timeout time.Duration, log logrus.FieldLogger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Checker{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Ping GETs t. Any HTTP response, whatever its status, counts as reachable.
func (p *Checker) Ping(ctx context.Context, t Target) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s (%s): %w", ErrServiceUnreachable, t.Name, t.URL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s (%s): %w", ErrServiceUnreachable, t.Name, t.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	p.log.WithFields(logrus.Fields{"target": t.Name, "url": t.URL, "status": resp.StatusCode}).Debug("Service reachable")
	return nil
}

// Check pings every target and joins the failures.
func (p *Checker) Check(ctx context.Context, targets ...Target) error {
	var errs []error
	for _, t := range targets {
		if err := p.Ping(ctx, t); err != nil {
			p.log.WithError(err).WithField("target", t.Name).Warn("Service not reachable")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Spawner starts the services under test. It is best effort: commands are
// started, then a fixed delay elapses; there is no readiness loop.
type Spawner struct {
	delay time.Duration
	clock wait.Clock
	log   logrus.FieldLogger

	start func(ctx context.Context, command string) (*exec.Cmd, error)
	procs []*exec.Cmd
}

// NewSpawner creates a Spawner that waits delay after starting commands.
func NewSpawner(delay time.Duration, clock wait.Clock, log logrus.FieldLogger) *Spawner {
	if clock == nil {
		clock = wait.RealClock()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Spawner{delay: delay, clock: clock, log: log, start: startShell}
}

func startShell(ctx context.Context, command string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Start launches each non-empty command and sleeps the configured delay
// once. Commands that fail to start are logged and skipped.
func (s *Spawner) Start(ctx context.Context, commands ...string) error {
	started := 0
	for _, command := range commands {
		if strings.TrimSpace(command) == "" {
			continue
		}
		cmd, err := s.start(ctx, command)
		if err != nil {
			s.log.WithError(err).WithField("command", command).Warn("Failed to start service")
			continue
		}
		s.log.WithField("command", command).Info("Started service")
		s.procs = append(s.procs, cmd)
		started++
	}
	if started == 0 {
		return nil
	}
	return s.clock.Sleep(ctx, s.delay)
}

// Stop kills every process the Spawner started.
func (s *Spawner) Stop() {
	for _, cmd := range s.procs {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}
	s.procs = nil
}
