// Package suite runs a selection of scenarios, one browser session each,
// and aggregates their results.
package suite

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/page"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/session"
	"dev/bravebird/storefront-e2e/pkg/wait"
)

// Exit codes of a suite run.
const (
	ExitPassed = 0
	ExitFailed = 1
	ExitFatal  = 2
)

// Session is a page owned by exactly one scenario run.
type Session interface {
	page.Page
	Close() error
}

// Opener creates a fresh session for each scenario.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// FactoryOpener opens rod-backed sessions from f.
func FactoryOpener(f *session.Factory) Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		s, err := f.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Options control scheduling and early exit.
type Options struct {
	RunID    string
	Category models.Category

	// Parallel is the number of scenarios in flight; values below 2 run
	// sequentially in catalog order.
	Parallel int

	// MaxFail stops scheduling after this many failures; 0 disables.
	MaxFail  int
	FailFast bool

	// Preflight, if set, runs before any scenario. An error aborts the
	// suite as fatal.
	Preflight func(ctx context.Context) error

	// OnStart and OnResult observe progress. They may be called from
	// several goroutines.
	OnStart  func(name string)
	OnResult func(models.ScenarioResult)
}

// Executor runs scenarios with a Runner on sessions from an Opener.
type Executor struct {
	opener Opener
	runner *scenario.Runner
	clock  wait.Clock
	log    logrus.FieldLogger
}

// NewExecutor creates an Executor. clock may be nil for the real clock.
func NewExecutor(opener Opener, runner *scenario.Runner, clock wait.Clock, log logrus.FieldLogger) *Executor {
	if clock == nil {
		clock = wait.RealClock()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Executor{opener: opener, runner: runner, clock: clock, log: log}
}

type collector struct {
	mu      sync.Mutex
	results map[int]models.ScenarioResult
	failed  int
	stopped bool
	fatal   string
	cancel  context.CancelFunc
	opts    Options
	log     logrus.FieldLogger
}

func (c *collector) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *collector) record(i int, res models.ScenarioResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[i] = res
	if res.Passed() {
		return
	}
	c.failed++
	switch {
	case res.ErrorKind.IsFatal():
		if c.fatal == "" {
			c.fatal = res.ErrorMessage
		}
		c.stopped = true
		c.cancel()
		c.log.WithField("scenario", res.Name).Error("Fatal error, aborting suite")
	case c.opts.FailFast:
		c.stopped = true
		c.log.WithField("scenario", res.Name).Warn("Stopping after first failure")
	case c.opts.MaxFail > 0 && c.failed >= c.opts.MaxFail:
		c.stopped = true
		c.log.WithField("failures", c.failed).Warn("Maximum failures reached, stopping")
	}
}

// Run executes scenarios and returns the aggregate. It never returns an
// error: every outcome is in the result.
func (e *Executor) Run(ctx context.Context, scenarios []scenario.Scenario, opts Options) models.SuiteResult {
	start := e.clock.Now()
	out := models.SuiteResult{
		RunID:     opts.RunID,
		Category:  opts.Category,
		Total:     len(scenarios),
		StartedAt: start,
	}
	if out.RunID == "" {
		out.RunID = uuid.New().String()
	}
	if out.Category == "" {
		out.Category = models.CategoryAll
	}
	log := e.log.WithField("run_id", out.RunID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := &collector{results: make(map[int]models.ScenarioResult), cancel: cancel, opts: opts, log: log}

	if opts.Preflight != nil {
		if err := opts.Preflight(ctx); err != nil {
			log.WithError(err).Error("Preflight failed")
			c.fatal = err.Error()
			c.stopped = true
		}
	}

	limit := opts.Parallel
	if limit < 1 {
		limit = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, sc := range scenarios {
		if c.isStopped() || ctx.Err() != nil {
			break
		}
		i, sc := i, sc
		g.Go(func() error {
			if c.isStopped() || ctx.Err() != nil {
				return nil
			}
			c.record(i, e.runOne(ctx, out.RunID, sc, opts))
			return nil
		})
	}
	_ = g.Wait()

	idx := make([]int, 0, len(c.results))
	for i := range c.results {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		out.Results = append(out.Results, c.results[i])
	}
	out.Fatal = c.fatal
	out.Aborted = len(out.Results) < out.Total
	out.Duration = e.clock.Now().Sub(start).Milliseconds()
	out.Tally()

	log.WithFields(logrus.Fields{
		"total":   out.Total,
		"passed":  out.Passed,
		"failed":  out.Failed,
		"not_run": out.NotRun,
		"status":  out.Status,
	}).Info("Suite finished")
	return out
}

func (e *Executor) runOne(ctx context.Context, runID string, sc scenario.Scenario, opts Options) models.ScenarioResult {
	if opts.OnStart != nil {
		opts.OnStart(sc.Name)
	}

	var res models.ScenarioResult
	sess, err := e.opener.Open(ctx)
	if err != nil {
		now := e.clock.Now()
		res = models.ScenarioResult{
			ID:           uuid.New().String(),
			Name:         sc.Name,
			Category:     sc.Category,
			Status:       models.StatusError,
			ErrorKind:    scenario.Classify(err),
			ErrorMessage: err.Error(),
			FailedStep:   -1,
			StartedAt:    &now,
			CompletedAt:  &now,
		}
		e.log.WithError(err).WithField("scenario", sc.Name).Error("Failed to open session")
	} else {
		res = e.runner.Run(ctx, sess, sc)
		if err := sess.Close(); err != nil {
			e.log.WithError(err).WithField("scenario", sc.Name).Warn("Failed to close session")
		}
	}
	res.RunID = runID

	if opts.OnResult != nil {
		opts.OnResult(res)
	}
	return res
}

// ExitCode maps a suite result onto the process exit code.
func ExitCode(r models.SuiteResult) int {
	switch {
	case r.Fatal != "":
		return ExitFatal
	case r.Status == models.StatusPassed:
		return ExitPassed
	default:
		return ExitFailed
	}
}
