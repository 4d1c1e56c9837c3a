// Package session launches and owns browser sessions for scenario runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"dev/bravebird/storefront-e2e/pkg/page"
)

// hideWebdriver runs as a script in every new document of a tab.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// Factory opens sessions from a fixed Profile.
type Factory struct {
	profile     Profile
	resolver    *Resolver
	callTimeout time.Duration
	log         logrus.FieldLogger
}

// NewFactory creates a Factory. callTimeout bounds every individual browser
// call; zero disables it.
func NewFactory(profile Profile, resolver *Resolver, callTimeout time.Duration, log logrus.FieldLogger) *Factory {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Factory{profile: profile, resolver: resolver, callTimeout: callTimeout, log: log}
}

// Profile returns the factory's startup profile.
func (f *Factory) Profile() Profile { return f.profile }

// Open resolves a browser, launches it with the profile and opens a blank
// tab. On any failure after launch the process is killed before returning.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	res, err := f.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	log := f.log.WithFields(logrus.Fields{"candidate": res.Candidate, "path": res.Path})

	l := f.profile.apply(launcher.New().Context(ctx).Bin(res.Path))
	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: launching %s: %w", ErrDriverUnavailable, res.Path, err)
	}

	fail := func(browser *rod.Browser, err error) (*Session, error) {
		if browser != nil {
			_ = browser.Close()
		}
		l.Kill()
		l.Cleanup()
		return nil, err
	}

	browser := rod.New().ControlURL(u).Context(ctx).NoDefaultDevice()
	if err := browser.Connect(); err != nil {
		return fail(nil, fmt.Errorf("%w: connecting to browser: %w", ErrDriverUnavailable, err))
	}

	s := &Session{
		browser:     browser,
		launcher:    l,
		callTimeout: f.callTimeout,
		log:         log,
	}
	if _, err := s.OpenTab(); err != nil {
		return fail(browser, fmt.Errorf("creating page: %w", err))
	}

	log.Info("Browser session opened")
	return s, nil
}

// Session is one running browser. It implements page.Page against the
// active tab and page.Tabs for multi-tab scenarios. A Session is owned by a
// single scenario run and is not safe for concurrent use.
type Session struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	tabs        []*rod.Page
	active      int
	callTimeout time.Duration
	log         logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

var (
	_ page.Page = (*Session)(nil)
	_ page.Tabs = (*Session)(nil)
)

// Close shuts the browser down and removes its profile directory. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.log.Info("Browser session closed")
	})
	return s.closeErr
}

func (s *Session) tab() *rod.Page { return s.tabs[s.active] }

// call runs fn against the active tab bounded by the call timeout.
func (s *Session) call(fn func(p *rod.Page) error) error {
	if len(s.tabs) == 0 {
		return errors.New("session has no open tab")
	}
	p := s.tab()
	if s.callTimeout > 0 {
		p = p.Timeout(s.callTimeout)
		defer p.CancelTimeout()
	}
	return fn(p)
}

func (s *Session) URL() (string, error) {
	var url string
	err := s.call(func(p *rod.Page) error {
		info, err := p.Info()
		if err != nil {
			return err
		}
		url = info.URL
		return nil
	})
	return url, err
}

func (s *Session) ReadyState() (string, error) {
	var state string
	err := s.call(func(p *rod.Page) error {
		res, err := p.Eval(`() => document.readyState`)
		if err != nil {
			return err
		}
		state = res.Value.Str()
		return nil
	})
	return state, err
}

// Find queries the active tab without waiting. Elements are bound to the
// tab's own context so they outlive the per-call timeout.
func (s *Session) Find(loc page.Locator) ([]page.Element, error) {
	if len(s.tabs) == 0 {
		return nil, errors.New("session has no open tab")
	}
	by, expr := loc.Query()
	var (
		els rod.Elements
		err error
	)
	switch by {
	case page.ByXPath:
		els, err = s.tab().ElementsX(expr)
	default:
		els, err = s.tab().Elements(expr)
	}
	if err != nil {
		return nil, err
	}
	out := make([]page.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el, timeout: s.callTimeout}
	}
	return out, nil
}

func (s *Session) HTML() (string, error) {
	var html string
	err := s.call(func(p *rod.Page) error {
		var err error
		html, err = p.HTML()
		return err
	})
	return html, err
}

func (s *Session) Navigate(url string) error {
	return s.call(func(p *rod.Page) error { return p.Navigate(url) })
}

func (s *Session) Back() error {
	return s.call(func(p *rod.Page) error { return p.NavigateBack() })
}

func (s *Session) Forward() error {
	return s.call(func(p *rod.Page) error { return p.NavigateForward() })
}

func (s *Session) Reload() error {
	return s.call(func(p *rod.Page) error { return p.Reload() })
}

func (s *Session) PressKey(key string) error {
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return s.call(func(p *rod.Page) error { return p.Keyboard.Type(k) })
}

func (s *Session) SetViewport(width, height int) error {
	return s.call(func(p *rod.Page) error {
		return p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             width,
			Height:            height,
			DeviceScaleFactor: 1,
		})
	})
}

func (s *Session) Screenshot() ([]byte, error) {
	var data []byte
	err := s.call(func(p *rod.Page) error {
		var err error
		data, err = p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		return err
	})
	return data, err
}

// OpenTab opens a blank tab and returns its index. Focus stays where it was,
// except for the first tab of a session.
func (s *Session) OpenTab() (int, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return 0, err
	}
	if _, err := p.EvalOnNewDocument(hideWebdriver); err != nil {
		_ = p.Close()
		return 0, fmt.Errorf("installing webdriver override: %w", err)
	}
	s.tabs = append(s.tabs, p)
	return len(s.tabs) - 1, nil
}

func (s *Session) SwitchTab(index int) error {
	if index < 0 || index >= len(s.tabs) {
		return fmt.Errorf("no tab %d (have %d)", index, len(s.tabs))
	}
	s.active = index
	_, err := s.tabs[index].Activate()
	return err
}

func (s *Session) CloseTab(index int) error {
	if index < 0 || index >= len(s.tabs) {
		return fmt.Errorf("no tab %d (have %d)", index, len(s.tabs))
	}
	if len(s.tabs) == 1 {
		return errors.New("cannot close the last tab")
	}
	if err := s.tabs[index].Close(); err != nil {
		return err
	}
	wasActive := s.active == index
	s.tabs = append(s.tabs[:index], s.tabs[index+1:]...)
	s.active = activeAfterClose(s.active, index)
	if wasActive {
		_, err := s.tabs[s.active].Activate()
		return err
	}
	return nil
}

// activeAfterClose returns the active index once tab closed is removed.
// Closing the active tab moves focus to its left neighbour, or to the new
// first tab.
func activeAfterClose(active, closed int) int {
	if active > closed || (active == closed && active > 0) {
		return active - 1
	}
	return active
}

func (s *Session) TabCount() int { return len(s.tabs) }

// keyFor maps a key name to a rod key.
func keyFor(name string) (input.Key, error) {
	switch strings.ToLower(name) {
	case "enter", "return":
		return input.Enter, nil
	case "tab":
		return input.Tab, nil
	case "escape", "esc":
		return input.Escape, nil
	case "backspace":
		return input.Backspace, nil
	case "arrowup":
		return input.ArrowUp, nil
	case "arrowdown":
		return input.ArrowDown, nil
	case "arrowleft":
		return input.ArrowLeft, nil
	case "arrowright":
		return input.ArrowRight, nil
	}
	if len(name) == 1 {
		return input.Key(name[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

type element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *element) call(fn func(el *rod.Element) error) error {
	el := e.el
	if e.timeout > 0 {
		el = el.Timeout(e.timeout)
		defer el.CancelTimeout()
	}
	return fn(el)
}

func (e *element) Visible() (bool, error) {
	var vis bool
	err := e.call(func(el *rod.Element) error {
		var err error
		vis, err = el.Visible()
		return err
	})
	return vis, err
}

func (e *element) Enabled() (bool, error) {
	var enabled bool
	err := e.call(func(el *rod.Element) error {
		res, err := el.Eval(`() => !this.disabled`)
		if err != nil {
			return err
		}
		enabled = res.Value.Bool()
		return nil
	})
	return enabled, err
}

func (e *element) Click() error {
	return e.call(func(el *rod.Element) error { return el.Click(proto.InputMouseButtonLeft, 1) })
}

func (e *element) Input(text string) error {
	return e.call(func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(text)
	})
}

func (e *element) Clear() error {
	return e.call(func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Page().Keyboard.Type(input.Backspace)
	})
}

func (e *element) Text() (string, error) {
	var text string
	err := e.call(func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

func (e *element) Attribute(name string) (string, bool, error) {
	var val *string
	err := e.call(func(el *rod.Element) error {
		var err error
		val, err = el.Attribute(name)
		return err
	})
	if err != nil || val == nil {
		return "", false, err
	}
	return *val, true, nil
}
