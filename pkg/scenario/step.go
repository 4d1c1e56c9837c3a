package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dev/bravebird/storefront-e2e/pkg/page"
)

// Action names a step type.
type Action string

const (
	ActionNavigate      Action = "navigate"       // Load a URL, then wait for the page to settle
	ActionWaitReady     Action = "wait_ready"     // Wait for document complete plus settle
	ActionFill          Action = "fill"           // Replace an input's value
	ActionClear         Action = "clear"          // Empty an input
	ActionClick         Action = "click"          // Click once clickable
	ActionPress         Action = "press"          // Press a named key on the focused element
	ActionWaitURL       Action = "wait_url"       // Wait until the URL contains value
	ActionWaitVisible   Action = "wait_visible"   // Wait until target is displayed
	ActionWaitClickable Action = "wait_clickable" // Wait until target is visible and enabled
	ActionAssertURL     Action = "assert_url"     // URL contains value now
	ActionAssertNotURL  Action = "assert_not_url" // URL does not contain value now
	ActionAssertText    Action = "assert_text"    // Target (or page) text contains value
	ActionAssertAttr    Action = "assert_attr"    // Target attribute equals value
	ActionAssertCount   Action = "assert_count"   // Number of target matches
	ActionOpenTab       Action = "open_tab"
	ActionSwitchTab     Action = "switch_tab"
	ActionCloseTab      Action = "close_tab"
	ActionBack          Action = "back"
	ActionForward       Action = "forward"
	ActionReload        Action = "reload" // Reload the current page, then wait for it to settle
	ActionViewport      Action = "viewport"
	ActionScreenshot    Action = "screenshot"
	ActionPause         Action = "pause"
	ActionInclude       Action = "include" // Replaced by a named fragment at load time
)

// Step is one row of a scenario table.
type Step struct {
	Action   Action        `yaml:"action" json:"action"`
	Name     string        `yaml:"name,omitempty" json:"name,omitempty"`
	Target   *page.Locator `yaml:"target,omitempty" json:"target,omitempty"`
	Value    string        `yaml:"value,omitempty" json:"value,omitempty"`
	AnyOf    []string      `yaml:"any_of,omitempty" json:"any_of,omitempty"`
	Attr     string        `yaml:"attr,omitempty" json:"attr,omitempty"`
	Count    *int          `yaml:"count,omitempty" json:"count,omitempty"`
	AtLeast  bool          `yaml:"at_least,omitempty" json:"at_least,omitempty"`
	Negate   bool          `yaml:"negate,omitempty" json:"negate,omitempty"`
	NoCase   bool          `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`
	Tab      int           `yaml:"tab,omitempty" json:"tab,omitempty"`
	Width    int           `yaml:"width,omitempty" json:"width,omitempty"`
	Height   int           `yaml:"height,omitempty" json:"height,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Optional bool          `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Validate checks that the step carries what its action needs.
func (s Step) Validate() error {
	needTarget := func() error {
		if s.Target == nil {
			return fmt.Errorf("%s: target is required", s.Action)
		}
		return s.Target.Validate()
	}
	needValue := func() error {
		if s.Value == "" {
			return fmt.Errorf("%s: value is required", s.Action)
		}
		return nil
	}

	switch s.Action {
	case ActionNavigate, ActionWaitURL, ActionAssertURL, ActionAssertNotURL, ActionPress, ActionScreenshot:
		return needValue()
	case ActionFill, ActionClear, ActionClick, ActionWaitVisible, ActionWaitClickable:
		return needTarget()
	case ActionAssertAttr:
		if err := needTarget(); err != nil {
			return err
		}
		if s.Attr == "" {
			return errors.New("assert_attr: attr is required")
		}
		return nil
	case ActionAssertCount:
		if err := needTarget(); err != nil {
			return err
		}
		if s.Count == nil || *s.Count < 0 {
			return errors.New("assert_count: a non-negative count is required")
		}
		return nil
	case ActionAssertText:
		if s.Value == "" && len(s.AnyOf) == 0 {
			return errors.New("assert_text: value or any_of is required")
		}
		if s.Target != nil {
			return s.Target.Validate()
		}
		return nil
	case ActionViewport:
		if s.Width <= 0 || s.Height <= 0 {
			return errors.New("viewport: width and height must be positive")
		}
		return nil
	case ActionPause:
		if s.Duration <= 0 {
			return errors.New("pause: duration must be positive")
		}
		return nil
	case ActionSwitchTab, ActionCloseTab:
		if s.Tab < 0 {
			return fmt.Errorf("%s: tab must not be negative", s.Action)
		}
		return nil
	case ActionWaitReady, ActionOpenTab, ActionBack, ActionForward, ActionReload:
		return nil
	case ActionInclude:
		return errors.New("include: fragment was not expanded")
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
}

// Describe renders the step for logs and reports.
func (s Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	parts := []string{string(s.Action)}
	if s.Target != nil {
		parts = append(parts, s.Target.String())
	}
	switch {
	case s.Value != "":
		parts = append(parts, fmt.Sprintf("%q", s.Value))
	case len(s.AnyOf) > 0:
		parts = append(parts, fmt.Sprintf("any of %q", s.AnyOf))
	}
	switch s.Action {
	case ActionAssertAttr:
		parts = append(parts, "@"+s.Attr)
	case ActionAssertCount:
		if s.Count != nil {
			op := "=="
			if s.AtLeast {
				op = ">="
			}
			parts = append(parts, fmt.Sprintf("%s %d", op, *s.Count))
		}
	case ActionSwitchTab, ActionCloseTab:
		parts = append(parts, fmt.Sprintf("#%d", s.Tab))
	case ActionViewport:
		parts = append(parts, fmt.Sprintf("%dx%d", s.Width, s.Height))
	case ActionPause:
		parts = append(parts, s.Duration.String())
	}
	if s.Negate {
		parts = append(parts, "(negated)")
	}
	return strings.Join(parts, " ")
}
