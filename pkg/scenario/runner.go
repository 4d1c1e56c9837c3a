package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dev/bravebird/storefront-e2e/pkg/artifact"
	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/page"
	"dev/bravebird/storefront-e2e/pkg/wait"
)

// Runner executes scenarios step by step against a page.
type Runner struct {
	waiter   *wait.Waiter
	recorder *artifact.Recorder
	params   Params
	log      logrus.FieldLogger
	unique   func() string
}

// NewRunner creates a Runner. recorder may be nil to disable screenshots.
func NewRunner(w *wait.Waiter, recorder *artifact.Recorder, params Params, log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{
		waiter:   w,
		recorder: recorder,
		params:   params,
		log:      log,
		unique:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}
}

// WithParams returns a copy of r whose params are overlaid with extra.
func (r *Runner) WithParams(extra map[string]string) *Runner {
	if len(extra) == 0 {
		return r
	}
	cp := *r
	cp.params = make(Params, len(r.params)+len(extra))
	for k, v := range r.params {
		cp.params[k] = v
	}
	for k, v := range extra {
		cp.params[k] = v
	}
	return &cp
}

// Run executes sc on p. The first failing step that is not optional ends the
// scenario; there is no retry. Errors are reported in the result, never
// returned.
func (r *Runner) Run(ctx context.Context, p page.Page, sc Scenario) models.ScenarioResult {
	clock := r.waiter.Clock()
	start := clock.Now()
	log := r.log.WithFields(logrus.Fields{"scenario": sc.Name, "category": sc.Category})

	params := r.params
	if _, ok := params[ParamUnique]; !ok {
		params = params.With(ParamUnique, r.unique())
	}

	res := models.ScenarioResult{
		ID:         uuid.New().String(),
		Name:       sc.Name,
		Category:   sc.Category,
		Status:     models.StatusRunning,
		FailedStep: -1,
		StartedAt:  &start,
	}
	log.Info("Running scenario")

	for i, step := range sc.Steps {
		stepStart := clock.Now()
		sr := models.StepResult{
			Index:       i,
			Action:      string(step.Action),
			Description: step.Describe(),
			Optional:    step.Optional,
		}

		shot, err := r.exec(ctx, p, params, step)
		sr.Duration = clock.Now().Sub(stepStart).Milliseconds()
		if shot != "" {
			sr.Screenshot = shot
			res.Screenshots = append(res.Screenshots, shot)
		}

		if err == nil {
			sr.Status = models.StatusPassed
			res.Steps = append(res.Steps, sr)
			continue
		}

		sr.Error = err.Error()
		kind := Classify(err)
		if step.Optional && ctx.Err() == nil && !kind.IsFatal() {
			sr.Status = models.StatusSkipped
			res.Steps = append(res.Steps, sr)
			log.WithError(err).WithField("step", i).Info("Optional step not met, skipping")
			continue
		}

		sr.Status = models.StatusFailed
		res.Steps = append(res.Steps, sr)
		res.Status = models.StatusFailed
		if ctx.Err() != nil {
			res.Status = models.StatusCanceled
		}
		res.ErrorKind = kind
		res.ErrorMessage = fmt.Sprintf("step %d (%s): %v", i, sr.Description, err)
		res.FailedStep = i
		log.WithError(err).WithFields(logrus.Fields{"step": i, "kind": kind}).Error("Scenario failed")

		if path := r.capture(p, sc.Name+" failed"); path != "" {
			res.Screenshots = append(res.Screenshots, path)
		}
		break
	}

	if res.FailedStep < 0 {
		res.Status = models.StatusPassed
		if path := r.capture(p, sc.Name); path != "" {
			res.Screenshots = append(res.Screenshots, path)
		}
	}

	end := clock.Now()
	res.CompletedAt = &end
	res.Duration = end.Sub(start).Milliseconds()
	log.WithFields(logrus.Fields{"status": res.Status, "duration": time.Duration(res.Duration) * time.Millisecond}).Info("Scenario finished")
	return res
}

func (r *Runner) capture(p page.Page, name string) string {
	if r.recorder == nil {
		return ""
	}
	return r.recorder.Capture(p, name)
}

func (r *Runner) exec(ctx context.Context, p page.Page, params Params, s Step) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w := r.waiter
	if s.Timeout > 0 {
		w = w.WithTimeout(s.Timeout)
	}

	switch s.Action {
	case ActionNavigate:
		if err := p.Navigate(params.URL(s.Value)); err != nil {
			return "", fmt.Errorf("navigating: %w", err)
		}
		return "", w.PageReady(ctx, p)

	case ActionWaitReady:
		return "", w.PageReady(ctx, p)

	case ActionFill:
		out, err := w.Until(ctx, p, wait.Present(*s.Target))
		if err != nil {
			return "", err
		}
		return "", out.Element.Input(params.Expand(s.Value))

	case ActionClear:
		out, err := w.Until(ctx, p, wait.Present(*s.Target))
		if err != nil {
			return "", err
		}
		return "", out.Element.Clear()

	case ActionClick:
		out, err := w.Until(ctx, p, wait.Clickable(*s.Target))
		if err != nil {
			return "", err
		}
		return "", out.Element.Click()

	case ActionPress:
		if s.Target != nil {
			out, err := w.Until(ctx, p, wait.Present(*s.Target))
			if err != nil {
				return "", err
			}
			if err := out.Element.Click(); err != nil {
				return "", fmt.Errorf("focusing %s: %w", s.Target, err)
			}
		}
		return "", p.PressKey(s.Value)

	case ActionWaitURL:
		_, err := w.Until(ctx, p, wait.URLContains(params.Expand(s.Value)))
		return "", err

	case ActionWaitVisible:
		_, err := w.Until(ctx, p, wait.Visible(*s.Target))
		return "", err

	case ActionWaitClickable:
		_, err := w.Until(ctx, p, wait.Clickable(*s.Target))
		return "", err

	case ActionAssertURL, ActionAssertNotURL:
		return "", assertURL(p, params.Expand(s.Value), s.Action == ActionAssertNotURL)

	case ActionAssertText:
		return "", assertText(p, params, s)

	case ActionAssertAttr:
		return "", assertAttr(p, params, s)

	case ActionAssertCount:
		return "", assertCount(p, s)

	case ActionOpenTab:
		tabs, err := tabsOf(p)
		if err != nil {
			return "", err
		}
		_, err = tabs.OpenTab()
		return "", err

	case ActionSwitchTab:
		tabs, err := tabsOf(p)
		if err != nil {
			return "", err
		}
		return "", tabs.SwitchTab(s.Tab)

	case ActionCloseTab:
		tabs, err := tabsOf(p)
		if err != nil {
			return "", err
		}
		return "", tabs.CloseTab(s.Tab)

	case ActionBack:
		if err := p.Back(); err != nil {
			return "", err
		}
		return "", w.PageReady(ctx, p)

	case ActionForward:
		if err := p.Forward(); err != nil {
			return "", err
		}
		return "", w.PageReady(ctx, p)

	case ActionReload:
		if err := p.Reload(); err != nil {
			return "", fmt.Errorf("reloading: %w", err)
		}
		return "", w.PageReady(ctx, p)

	case ActionViewport:
		return "", p.SetViewport(s.Width, s.Height)

	case ActionScreenshot:
		return r.capture(p, params.Expand(s.Value)), nil

	case ActionPause:
		return "", w.Pause(ctx, s.Duration)

	default:
		return "", fmt.Errorf("unsupported action %q", s.Action)
	}
}

func tabsOf(p page.Page) (page.Tabs, error) {
	tabs, ok := p.(page.Tabs)
	if !ok {
		return nil, errors.New("page does not support tabs")
	}
	return tabs, nil
}

func assertURL(p page.Page, fragment string, negate bool) error {
	u, err := p.URL()
	if err != nil {
		return err
	}
	if strings.Contains(u, fragment) == negate {
		if negate {
			return fmt.Errorf("%w: url %q contains %q", ErrAssertion, u, fragment)
		}
		return fmt.Errorf("%w: url %q does not contain %q", ErrAssertion, u, fragment)
	}
	return nil
}

func assertText(p page.Page, params Params, s Step) error {
	var text string
	if s.Target != nil {
		el, err := wait.Find(p, *s.Target)
		if err != nil {
			return err
		}
		if text, err = el.Text(); err != nil {
			return err
		}
	} else {
		html, err := p.HTML()
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return fmt.Errorf("parsing page: %w", err)
		}
		text = doc.Find("body").Text()
	}

	wants := make([]string, 0, len(s.AnyOf)+1)
	if s.Value != "" {
		wants = append(wants, params.Expand(s.Value))
	}
	for _, v := range s.AnyOf {
		wants = append(wants, params.Expand(v))
	}

	haystack := text
	if s.NoCase {
		haystack = strings.ToLower(text)
	}
	found := ""
	for _, want := range wants {
		needle := want
		if s.NoCase {
			needle = strings.ToLower(want)
		}
		if strings.Contains(haystack, needle) {
			found = want
			break
		}
	}

	switch {
	case s.Negate && found != "":
		return fmt.Errorf("%w: found unexpected text %q", ErrAssertion, found)
	case !s.Negate && found == "":
		return fmt.Errorf("%w: %q not found in %q", ErrAssertion, wants, excerpt(text))
	}
	return nil
}

func assertAttr(p page.Page, params Params, s Step) error {
	el, err := wait.Find(p, *s.Target)
	if err != nil {
		return err
	}
	got, ok, err := el.Attribute(s.Attr)
	if err != nil {
		return err
	}
	want := params.Expand(s.Value)
	equal := ok && got == want || !ok && want == ""
	if equal == s.Negate {
		if s.Negate {
			return fmt.Errorf("%w: %s@%s is %q", ErrAssertion, s.Target, s.Attr, got)
		}
		return fmt.Errorf("%w: %s@%s is %q, want %q", ErrAssertion, s.Target, s.Attr, got, want)
	}
	return nil
}

func assertCount(p page.Page, s Step) error {
	els, err := p.Find(*s.Target)
	if err != nil {
		return err
	}
	n, want := len(els), *s.Count
	if s.AtLeast && n >= want || !s.AtLeast && n == want {
		return nil
	}
	op := ""
	if s.AtLeast {
		op = "at least "
	}
	return fmt.Errorf("%w: %s matched %d elements, want %s%d", ErrAssertion, s.Target, n, op, want)
}

const excerptRunes = 200

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > excerptRunes {
		return string([]rune(s)[:excerptRunes]) + "..."
	}
	return s
}
