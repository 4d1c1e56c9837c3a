// Package page defines the browser-agnostic contracts the waiter and the
// scenario runner drive. The rod-backed implementation lives in pkg/session;
// tests substitute scripted fakes.
package page

import (
	"errors"
	"fmt"
	"strings"
)

// By selects the query language of a Locator.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
)

// Locator identifies elements on a page. Exactly one of CSS, XPath or Text
// must be set. Text matches elements whose own text contains the value,
// optionally restricted to Tag.
type Locator struct {
	CSS   string `yaml:"css,omitempty" json:"css,omitempty"`
	XPath string `yaml:"xpath,omitempty" json:"xpath,omitempty"`
	Text  string `yaml:"text,omitempty" json:"text,omitempty"`
	Tag   string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// CSS returns a CSS selector locator.
func CSS(selector string) Locator { return Locator{CSS: selector} }

// XPath returns an XPath locator.
func XPath(expr string) Locator { return Locator{XPath: expr} }

// Text returns a locator for a tag whose text contains s. An empty tag
// matches any element.
func Text(tag, s string) Locator { return Locator{Tag: tag, Text: s} }

// Validate reports whether exactly one query form is set.
func (l Locator) Validate() error {
	set := 0
	for _, v := range []string{l.CSS, l.XPath, l.Text} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return errors.New("locator is empty")
	case set > 1:
		return fmt.Errorf("locator %s sets more than one of css, xpath, text", l)
	}
	if l.Tag != "" && l.Text == "" {
		return fmt.Errorf("locator %s: tag is only valid with text", l)
	}
	return nil
}

// Query returns the query language and expression to evaluate.
func (l Locator) Query() (By, string) {
	switch {
	case l.CSS != "":
		return ByCSS, l.CSS
	case l.XPath != "":
		return ByXPath, l.XPath
	default:
		tag := l.Tag
		if tag == "" {
			tag = "*"
		}
		return ByXPath, fmt.Sprintf("//%s[contains(text(), %s)]", tag, xpathLiteral(l.Text))
	}
}

func (l Locator) String() string {
	switch {
	case l.CSS != "":
		return "css=" + l.CSS
	case l.XPath != "":
		return "xpath=" + l.XPath
	case l.Tag != "":
		return fmt.Sprintf("text=%s:%q", l.Tag, l.Text)
	default:
		return fmt.Sprintf("text=%q", l.Text)
	}
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Element is a handle to one DOM element.
type Element interface {
	Visible() (bool, error)
	Enabled() (bool, error)
	Click() error
	// Input replaces the element's current value with text.
	Input(text string) error
	Clear() error
	Text() (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)
}

// Page is the active tab of a browser session.
type Page interface {
	URL() (string, error)
	ReadyState() (string, error)
	// Find performs an immediate lookup; an empty slice means no match.
	Find(loc Locator) ([]Element, error)
	HTML() (string, error)
	Navigate(url string) error
	Back() error
	Forward() error
	Reload() error
	PressKey(key string) error
	SetViewport(width, height int) error
	Screenshot() ([]byte, error)
}

// Tabs is implemented by pages that can open and focus additional tabs.
// Tabs are addressed by the order in which they were opened.
type Tabs interface {
	OpenTab() (int, error)
	SwitchTab(index int) error
	CloseTab(index int) error
	TabCount() int
}
