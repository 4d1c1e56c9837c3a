package wait

import (
	"fmt"
	"strings"

	"dev/bravebird/storefront-e2e/pkg/page"
)

// Outcome is what a satisfied condition yields: the matched element for
// element conditions, Value=true for boolean ones.
type Outcome struct {
	Element page.Element
	Value   bool
}

// Condition is a read-only predicate over page state.
type Condition interface {
	Describe() string
	// Check evaluates the condition once. An error means the state could not
	// be read this time; the waiter keeps polling.
	Check(p page.Page) (Outcome, bool, error)
}

type presentCondition struct{ loc page.Locator }

// Present holds once at least one element matches loc.
func Present(loc page.Locator) Condition { return presentCondition{loc} }

func (c presentCondition) Describe() string { return fmt.Sprintf("element %s to be present", c.loc) }

func (c presentCondition) Check(p page.Page) (Outcome, bool, error) {
	els, err := p.Find(c.loc)
	if err != nil || len(els) == 0 {
		return Outcome{}, false, err
	}
	return Outcome{Element: els[0], Value: true}, true, nil
}

type visibleCondition struct{ loc page.Locator }

// Visible holds once any element matching loc is displayed.
func Visible(loc page.Locator) Condition { return visibleCondition{loc} }

func (c visibleCondition) Describe() string { return fmt.Sprintf("element %s to be visible", c.loc) }

func (c visibleCondition) Check(p page.Page) (Outcome, bool, error) {
	els, err := p.Find(c.loc)
	if err != nil {
		return Outcome{}, false, err
	}
	for _, el := range els {
		vis, err := el.Visible()
		if err != nil {
			return Outcome{}, false, err
		}
		if vis {
			return Outcome{Element: el, Value: true}, true, nil
		}
	}
	return Outcome{}, false, nil
}

type clickableCondition struct{ loc page.Locator }

// Clickable holds once the first element matching loc is visible and
// enabled.
func Clickable(loc page.Locator) Condition { return clickableCondition{loc} }

func (c clickableCondition) Describe() string {
	return fmt.Sprintf("element %s to be clickable", c.loc)
}

func (c clickableCondition) Check(p page.Page) (Outcome, bool, error) {
	els, err := p.Find(c.loc)
	if err != nil || len(els) == 0 {
		return Outcome{}, false, err
	}
	el := els[0]
	vis, err := el.Visible()
	if err != nil || !vis {
		return Outcome{}, false, err
	}
	enabled, err := el.Enabled()
	if err != nil || !enabled {
		return Outcome{}, false, err
	}
	return Outcome{Element: el, Value: true}, true, nil
}

type funcCondition struct {
	desc string
	fn   func(page.Page) (bool, error)
}

// Func adapts a boolean function of page state.
func Func(desc string, fn func(page.Page) (bool, error)) Condition {
	return funcCondition{desc: desc, fn: fn}
}

func (c funcCondition) Describe() string { return c.desc }

func (c funcCondition) Check(p page.Page) (Outcome, bool, error) {
	ok, err := c.fn(p)
	if err != nil || !ok {
		return Outcome{}, false, err
	}
	return Outcome{Value: true}, true, nil
}

// URLContains holds once the current location contains fragment.
func URLContains(fragment string) Condition {
	return Func(fmt.Sprintf("url to contain %q", fragment), func(p page.Page) (bool, error) {
		u, err := p.URL()
		if err != nil {
			return false, err
		}
		return strings.Contains(u, fragment), nil
	})
}

// DocumentComplete holds once document.readyState is "complete".
func DocumentComplete() Condition {
	return Func("document to be complete", func(p page.Page) (bool, error) {
		state, err := p.ReadyState()
		if err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

// TextPresent holds once the page source contains s.
func TextPresent(s string) Condition {
	return Func(fmt.Sprintf("page to contain %q", s), func(p page.Page) (bool, error) {
		html, err := p.HTML()
		if err != nil {
			return false, err
		}
		return strings.Contains(html, s), nil
	})
}
