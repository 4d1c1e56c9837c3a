// Package wait turns the storefront's asynchronous rendering signals into a
// single blocking poll loop.
package wait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"dev/bravebird/storefront-e2e/pkg/page"
)

var (
	// ErrTimeout is returned when a condition never held within the timeout.
	ErrTimeout = errors.New("timed out")
	// ErrElementNotFound is returned by an immediate lookup with no match.
	ErrElementNotFound = errors.New("element not found")
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 500 * time.Millisecond
	DefaultSettle   = 4 * time.Second
)

// Options configures a Waiter. Zero durations take the defaults; a negative
// Settle disables the settle delay.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Settle   time.Duration

	// InclusiveDeadline makes the loop evaluate the condition one last time
	// exactly at the deadline. When false the last evaluation happens just
	// before the deadline and nothing is evaluated at or after it.
	InclusiveDeadline bool

	Clock Clock
}

// Waiter polls conditions against a page.
type Waiter struct {
	timeout   time.Duration
	interval  time.Duration
	settle    time.Duration
	inclusive bool
	clock     Clock
	log       logrus.FieldLogger
}

// New creates a Waiter. A nil log discards output.
func New(opts Options, log logrus.FieldLogger) *Waiter {
	w := &Waiter{
		timeout:   opts.Timeout,
		interval:  opts.Interval,
		settle:    opts.Settle,
		inclusive: opts.InclusiveDeadline,
		clock:     opts.Clock,
		log:       log,
	}
	if w.timeout == 0 {
		w.timeout = DefaultTimeout
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	switch {
	case w.settle == 0:
		w.settle = DefaultSettle
	case w.settle < 0:
		w.settle = 0
	}
	if w.clock == nil {
		w.clock = RealClock()
	}
	if w.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		w.log = l
	}
	return w
}

// Timeout returns the per-wait timeout.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Clock returns the clock every delay goes through.
func (w *Waiter) Clock() Clock { return w.clock }

// WithTimeout returns a copy of w using timeout d.
func (w *Waiter) WithTimeout(d time.Duration) *Waiter {
	cp := *w
	cp.timeout = d
	return &cp
}

// Until polls cond every interval until it holds or the timeout elapses.
func (w *Waiter) Until(ctx context.Context, p page.Page, cond Condition) (Outcome, error) {
	deadline := w.clock.Now().Add(w.timeout)
	var lastErr error
	checks := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("waiting for %s: %w", cond.Describe(), err)
		}
		if !w.inclusive && !w.clock.Now().Before(deadline) {
			break
		}

		out, ok, err := cond.Check(p)
		checks++
		if err != nil {
			lastErr = err
			w.log.WithError(err).WithField("condition", cond.Describe()).Debug("Condition check failed, retrying")
		} else if ok {
			return out, nil
		}

		now := w.clock.Now()
		if !now.Before(deadline) {
			break
		}
		d := w.interval
		if rem := deadline.Sub(now); rem <= d {
			d = rem
			if !w.inclusive {
				// The last check lands just inside an exclusive deadline.
				if rem <= time.Nanosecond {
					break
				}
				d = rem - time.Nanosecond
			}
		}
		if err := w.clock.Sleep(ctx, d); err != nil {
			return Outcome{}, fmt.Errorf("waiting for %s: %w", cond.Describe(), err)
		}
	}

	if lastErr != nil {
		return Outcome{}, fmt.Errorf("%w after %s (%d checks) waiting for %s: last error: %v",
			ErrTimeout, w.timeout, checks, cond.Describe(), lastErr)
	}
	return Outcome{}, fmt.Errorf("%w after %s (%d checks) waiting for %s", ErrTimeout, w.timeout, checks, cond.Describe())
}

// PageReady waits for the document to report complete and then applies the
// settle delay for client-side rendering.
func (w *Waiter) PageReady(ctx context.Context, p page.Page) error {
	if _, err := w.Until(ctx, p, DocumentComplete()); err != nil {
		return err
	}
	return w.Pause(ctx, w.settle)
}

// Pause sleeps d through the waiter's clock.
func (w *Waiter) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return w.clock.Sleep(ctx, d)
}

// Find returns the first element matching loc without waiting.
func Find(p page.Page, loc page.Locator) (page.Element, error) {
	els, err := p.Find(loc)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", loc, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return els[0], nil
}
