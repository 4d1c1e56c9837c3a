// Package pagetest provides scriptable in-memory implementations of the page
// contracts for tests.
package pagetest

import (
	"errors"
	"sync"

	"dev/bravebird/storefront-e2e/pkg/page"
)

// Element is a scripted DOM element.
type Element struct {
	mu       sync.Mutex
	text     string
	value    string
	attrs    map[string]string
	hidden   bool
	disabled bool
	clicks   int

	// VisibleErr, if set, is returned from Visible (a detached element).
	VisibleErr error
	// OnClick runs after the click is recorded.
	OnClick func() error
}

// NewElement returns a visible, enabled element with the given text.
func NewElement(text string) *Element {
	return &Element{text: text, attrs: map[string]string{}}
}

func (e *Element) Visible() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.VisibleErr != nil {
		return false, e.VisibleErr
	}
	return !e.hidden, nil
}

func (e *Element) Enabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.disabled, nil
}

func (e *Element) Click() error {
	e.mu.Lock()
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		return hook()
	}
	return nil
}

func (e *Element) Input(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = text
	return nil
}

func (e *Element) Clear() error { return e.Input("") }

func (e *Element) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *Element) Attribute(name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "value" {
		return e.value, true, nil
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

// SetAttr sets an attribute.
func (e *Element) SetAttr(name, value string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
	return e
}

// SetHidden toggles visibility.
func (e *Element) SetHidden(hidden bool) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = hidden
	return e
}

// SetDisabled toggles the disabled state.
func (e *Element) SetDisabled(disabled bool) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabled = disabled
	return e
}

// Value returns the current input value.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Page is a scripted tab. Elements are registered per locator and returned
// verbatim from Find.
type Page struct {
	mu       sync.Mutex
	url      string
	state    string
	html     string
	elements map[string][]page.Element
	findErr  error
	urlErr   error
	history  []string
	pos      int
	keys     []string
	width    int
	height   int
	shot     []byte
	shotErr  error
	tabs     int
	active   int
	finds    int
	reloads  int
}

var _ page.Page = (*Page)(nil)
var _ page.Tabs = (*Page)(nil)

// New returns a page at url whose document is already complete.
func New(url string) *Page {
	return &Page{
		url:      url,
		state:    "complete",
		elements: map[string][]page.Element{},
		history:  []string{url},
		shot:     []byte("\x89PNG\r\n\x1a\n"),
		tabs:     1,
	}
}

func (p *Page) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return p.url, nil
}

func (p *Page) ReadyState() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

func (p *Page) Find(loc page.Locator) ([]page.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.findErr != nil {
		return nil, p.findErr
	}
	return append([]page.Element(nil), p.elements[loc.String()]...), nil
}

func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history[:p.pos+1], url)
	p.pos = len(p.history) - 1
	p.url = url
	return nil
}

func (p *Page) Back() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos > 0 {
		p.pos--
		p.url = p.history[p.pos]
	}
	return nil
}

func (p *Page) Forward() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos < len(p.history)-1 {
		p.pos++
		p.url = p.history[p.pos]
	}
	return nil
}

// Reload keeps the URL and history.
func (p *Page) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *Page) PressKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *Page) SetViewport(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = width, height
	return nil
}

func (p *Page) Screenshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return append([]byte(nil), p.shot...), nil
}

func (p *Page) OpenTab() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tabs++
	return p.tabs - 1, nil
}

func (p *Page) SwitchTab(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.tabs {
		return errors.New("no such tab")
	}
	p.active = index
	return nil
}

func (p *Page) CloseTab(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.tabs || p.tabs == 1 {
		return errors.New("cannot close tab")
	}
	p.tabs--
	if p.active >= p.tabs {
		p.active = p.tabs - 1
	}
	return nil
}

func (p *Page) TabCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tabs
}

// ActiveTab returns the focused tab index.
func (p *Page) ActiveTab() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Put registers the elements returned for loc, replacing earlier ones.
func (p *Page) Put(loc page.Locator, els ...page.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.String()] = els
}

// Remove drops every element registered for loc.
func (p *Page) Remove(loc page.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, loc.String())
}

func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *Page) SetReadyState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// SetFindErr makes every Find fail with err until reset with nil.
func (p *Page) SetFindErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.findErr = err
}

func (p *Page) SetURLErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlErr = err
}

func (p *Page) SetScreenshot(data []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shot, p.shotErr = data, err
}

// Keys returns every key pressed, in order.
func (p *Page) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// Viewport returns the last size set.
func (p *Page) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// FindCalls returns how many lookups were made.
func (p *Page) FindCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

// Reloads returns how many times the page was reloaded.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}
