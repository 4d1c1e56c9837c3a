// Package recording turns rrweb session recordings into scenario tables
// that the runner can replay.
package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/page"
	"dev/bravebird/storefront-e2e/pkg/scenario"
)

const (
	clickDedupeWindow = 500  // ms
	inputMergeWindow  = 1000 // ms
)

// recorded is one interaction before it becomes a step.
type recorded struct {
	action    scenario.Action
	target    page.Locator
	value     string
	width     int
	height    int
	timestamp int64
	focus     bool
}

// Converter accumulates rrweb events.
type Converter struct {
	registry    *registry
	baseURL     string
	actions     []recorded
	lastClick   string
	lastClickAt int64
	lastInput   string
}

// NewConverter creates a Converter. Navigations under baseURL are written
// as paths so the scenario runs against any deployment.
func NewConverter(baseURL string) *Converter {
	return &Converter{
		registry: newRegistry(),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// ParseEvents reads a recording: either a bare event array or an object
// with an "events" array.
func ParseEvents(r io.Reader) ([]models.RRWebEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("recording is not valid JSON")
	}
	raw := data
	if events := gjson.GetBytes(data, "events"); events.IsArray() {
		raw = []byte(events.Raw)
	}
	var out []models.RRWebEvent
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return out, nil
}

// Process feeds events in order.
func (c *Converter) Process(events []models.RRWebEvent) error {
	for _, ev := range events {
		switch ev.Type {
		case models.RRWebEventFullSnapshot:
			var data models.RRWebFullSnapshot
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return fmt.Errorf("failed to unmarshal full snapshot: %w", err)
			}
			c.registry = newRegistry()
			c.registry.register(data.Node, 0)

		case models.RRWebEventMeta:
			var data models.RRWebMetaData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return fmt.Errorf("failed to unmarshal meta: %w", err)
			}
			c.processMeta(data, ev.Timestamp)

		case models.RRWebEventIncremental:
			var data models.RRWebIncrementalData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return fmt.Errorf("failed to unmarshal incremental snapshot: %w", err)
			}
			c.processIncremental(data, ev.Timestamp)
		}
	}
	return nil
}

func (c *Converter) processMeta(data models.RRWebMetaData, ts int64) {
	target := data.Href
	if c.baseURL != "" && strings.HasPrefix(target, c.baseURL) {
		target = strings.TrimPrefix(target, c.baseURL)
		if target == "" {
			target = "/"
		}
	}

	// A page load right after a click is the click's navigation.
	if n := len(c.actions); n > 0 && c.actions[n-1].action == scenario.ActionClick {
		path := target
		if u, err := url.Parse(target); err == nil && u.Path != "" {
			path = u.Path
		}
		c.add(recorded{action: scenario.ActionWaitURL, value: path, timestamp: ts})
		return
	}
	c.add(recorded{action: scenario.ActionNavigate, value: target, timestamp: ts})
}

func (c *Converter) processIncremental(data models.RRWebIncrementalData, ts int64) {
	switch data.Source {
	case models.SourceMouseInteraction:
		c.processMouse(data, ts)
	case models.SourceInput:
		c.processInput(data, ts)
	case models.SourceViewportResize:
		c.processResize(data, ts)
	case models.SourceMutation:
		c.processMutation(data)
	}
}

func (c *Converter) processMouse(data models.RRWebIncrementalData, ts int64) {
	loc := c.registry.locator(data.ID)
	key := loc.String()

	switch data.Type {
	case models.MouseInteractionClick:
		if c.lastClick == key && ts-c.lastClickAt < clickDedupeWindow {
			return
		}
		c.lastClick, c.lastClickAt = key, ts
		c.dropFocus(key)
		c.add(recorded{action: scenario.ActionClick, target: loc, timestamp: ts})

	case models.MouseInteractionDblClick:
		c.add(recorded{action: scenario.ActionClick, target: loc, timestamp: ts})

	case models.MouseInteractionFocus:
		c.add(recorded{target: loc, timestamp: ts, focus: true})
	}
}

func (c *Converter) processInput(data models.RRWebIncrementalData, ts int64) {
	loc := c.registry.locator(data.ID)
	key := loc.String()
	c.dropFocus(key)

	if data.IsChecked {
		c.add(recorded{action: scenario.ActionClick, target: loc, timestamp: ts})
		return
	}

	if n := len(c.actions); n > 0 && c.lastInput == key {
		last := &c.actions[n-1]
		if last.action == scenario.ActionFill && ts-last.timestamp < inputMergeWindow {
			last.value = data.Text
			last.timestamp = ts
			return
		}
	}
	c.lastInput = key
	c.add(recorded{action: scenario.ActionFill, target: loc, value: data.Text, timestamp: ts})
}

func (c *Converter) processResize(data models.RRWebIncrementalData, ts int64) {
	if data.Width <= 0 || data.Height <= 0 {
		return
	}
	if n := len(c.actions); n > 0 && c.actions[n-1].action == scenario.ActionViewport {
		c.actions[n-1].width, c.actions[n-1].height = data.Width, data.Height
		return
	}
	c.add(recorded{action: scenario.ActionViewport, width: data.Width, height: data.Height, timestamp: ts})
}

func (c *Converter) processMutation(data models.RRWebIncrementalData) {
	for _, rm := range data.Removes {
		c.registry.remove(rm.ID)
	}
	for _, add := range data.Adds {
		c.registry.register(add.Node, add.ParentID)
	}
	for _, t := range data.Texts {
		c.registry.setText(t.ID, t.Value)
	}
	for _, a := range data.Attributes {
		c.registry.setAttrs(a.ID, a.Attributes)
	}
}

// dropFocus removes a focus that is immediately followed by an interaction
// with the same element.
func (c *Converter) dropFocus(key string) {
	if n := len(c.actions); n > 0 && c.actions[n-1].focus && c.actions[n-1].target.String() == key {
		c.actions = c.actions[:n-1]
	}
}

func (c *Converter) add(a recorded) {
	c.actions = append(c.actions, a)
}

// Steps returns the recorded interactions as scenario steps. Focus events
// with no following interaction are dropped.
func (c *Converter) Steps() []scenario.Step {
	steps := make([]scenario.Step, 0, len(c.actions))
	for _, a := range c.actions {
		if a.focus {
			continue
		}
		s := scenario.Step{Action: a.action, Value: a.value, Width: a.width, Height: a.height}
		switch a.action {
		case scenario.ActionClick, scenario.ActionFill:
			target := a.target
			s.Target = &target
		}
		steps = append(steps, s)
	}
	return steps
}

// Scenario wraps the steps in a named scenario and validates it.
func (c *Converter) Scenario(name string, category models.Category) (scenario.Scenario, error) {
	sc := scenario.Scenario{
		Name:        name,
		Category:    category,
		Description: "Imported from an rrweb recording.",
		Steps:       c.Steps(),
	}
	if err := sc.Validate(); err != nil {
		return scenario.Scenario{}, err
	}
	return sc, nil
}

// Export writes scenarios as a table that LoadFile can read back.
func Export(w io.Writer, category models.Category, scenarios ...scenario.Scenario) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(scenario.Table{Category: category, Scenarios: scenarios}); err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
