// Package scenario describes storefront user journeys as step tables and
// runs them against a browser page.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/preflight"
	"dev/bravebird/storefront-e2e/pkg/session"
	"dev/bravebird/storefront-e2e/pkg/wait"
)

// ErrAssertion is returned when a page check does not hold.
var ErrAssertion = errors.New("assertion failed")

// Scenario is an ordered list of steps that exercises one behavior.
type Scenario struct {
	Name        string          `yaml:"name" json:"name"`
	Category    models.Category `yaml:"category,omitempty" json:"category"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step          `yaml:"steps" json:"steps"`
}

// Validate checks the scenario and every step.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// Table is the on-disk form: one category with its scenarios, plus named
// step fragments that scenarios pull in with an include step.
type Table struct {
	Category  models.Category   `yaml:"category"`
	Fragments map[string][]Step `yaml:"fragments,omitempty"`
	Scenarios []Scenario        `yaml:"scenarios"`
}

// Params are the values substituted for {{name}} tokens in step values.
type Params map[string]string

// Well-known parameter names.
const (
	ParamBaseURL  = "base_url"
	ParamAPIURL   = "api_url"
	ParamUsername = "username"
	ParamPassword = "password"
	ParamUnique   = "unique"
)

// With returns a copy of p with key set to value.
func (p Params) With(key, value string) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}

var tokenRE = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Expand substitutes every known {{name}} token in s in a single pass.
// Unknown tokens are left in place and substituted values are not expanded
// again.
func (p Params) Expand(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return tokenRE.ReplaceAllStringFunc(s, func(tok string) string {
		if value, ok := p[tok[2:len(tok)-2]]; ok {
			return value
		}
		return tok
	})
}

// URL expands s and resolves a leading slash against base_url.
func (p Params) URL(s string) string {
	s = p.Expand(s)
	if strings.HasPrefix(s, "/") {
		return strings.TrimRight(p[ParamBaseURL], "/") + s
	}
	return s
}

// Classify maps an error from a run onto the error taxonomy.
func Classify(err error) models.ErrorKind {
	switch {
	case err == nil:
		return models.ErrorNone
	case errors.Is(err, session.ErrDriverUnavailable):
		return models.ErrorDriverUnavailable
	case errors.Is(err, preflight.ErrServiceUnreachable):
		return models.ErrorServiceUnreachable
	case errors.Is(err, wait.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorTimeout
	case errors.Is(err, wait.ErrElementNotFound):
		return models.ErrorElementNotFound
	case errors.Is(err, ErrAssertion):
		return models.ErrorAssertion
	default:
		return models.ErrorFatal
	}
}
