package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ==================== Scenario Types ====================

// Category groups scenarios the way the suite is selected from the CLI
type Category string

const (
	CategoryAll         Category = "all"
	CategoryLogin       Category = "login"
	CategoryRegister    Category = "register"
	CategoryDashboard   Category = "dashboard"
	CategoryCart        Category = "cart"
	CategoryNavigation  Category = "navigation"
	CategoryIntegration Category = "integration"
)

// Categories lists every concrete category in run order
func Categories() []Category {
	return []Category{
		CategoryLogin,
		CategoryRegister,
		CategoryDashboard,
		CategoryCart,
		CategoryNavigation,
		CategoryIntegration,
	}
}

// ParseCategory validates a category name. The empty string means all.
func ParseCategory(s string) (Category, error) {
	if s == "" || s == string(CategoryAll) {
		return CategoryAll, nil
	}
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ==================== Result Types ====================

// RunStatus represents the status of a suite run or scenario
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusPassed   RunStatus = "passed"
	StatusFailed   RunStatus = "failed"
	StatusSkipped  RunStatus = "skipped"
	StatusError    RunStatus = "error"
	StatusCanceled RunStatus = "canceled"
)

// Finished reports whether a run in this status will not change again
func (s RunStatus) Finished() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusCanceled:
		return true
	}
	return false
}

// ErrorKind classifies why a scenario did not pass
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorTimeout            ErrorKind = "timeout"
	ErrorElementNotFound    ErrorKind = "element_not_found"
	ErrorAssertion          ErrorKind = "assertion"
	ErrorDriverUnavailable  ErrorKind = "driver_unavailable"
	ErrorServiceUnreachable ErrorKind = "service_unreachable"
	ErrorFatal              ErrorKind = "fatal"
)

// IsFatal reports whether the error should stop the whole suite
func (k ErrorKind) IsFatal() bool {
	return k == ErrorDriverUnavailable || k == ErrorServiceUnreachable
}

// StepResult represents the outcome of one scenario step
type StepResult struct {
	Index       int       `json:"index"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Status      RunStatus `json:"status"`
	Optional    bool      `json:"optional,omitempty"`
	Screenshot  string    `json:"screenshot,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    int64     `json:"duration_ms"`
}

// ScenarioResult represents the result of running a single scenario
type ScenarioResult struct {
	ID           string       `json:"id" db:"id"`
	RunID        string       `json:"run_id" db:"run_id"`
	Name         string       `json:"name" db:"name"`
	Category     Category     `json:"category" db:"category"`
	Status       RunStatus    `json:"status" db:"status"`
	ErrorKind    ErrorKind    `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage string       `json:"error_message,omitempty" db:"error_message"`
	FailedStep   int          `json:"failed_step" db:"failed_step"` // -1 when no step failed
	Screenshots  []string     `json:"screenshots,omitempty"`
	StartedAt    *time.Time   `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at" db:"completed_at"`
	Duration     int64        `json:"duration_ms" db:"duration_ms"`
	Steps        []StepResult `json:"steps,omitempty"`
}

// Passed reports whether the scenario passed
func (r ScenarioResult) Passed() bool { return r.Status == StatusPassed }

// SuiteRun represents a single execution of a selection of scenarios
type SuiteRun struct {
	ID                 string     `json:"id" db:"id"`
	Category           Category   `json:"category" db:"category"`
	TemporalWorkflowID string     `json:"temporal_workflow_id,omitempty" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id,omitempty" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	Total              int        `json:"total" db:"total"`
	Passed             int        `json:"passed" db:"passed"`
	Failed             int        `json:"failed" db:"failed"`
	NotRun             int        `json:"not_run" db:"not_run"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed fields
	Results []ScenarioResult `json:"results,omitempty"`
}

// SuiteResult is the aggregate outcome of a suite execution
type SuiteResult struct {
	RunID     string           `json:"run_id"`
	Category  Category         `json:"category"`
	Status    RunStatus        `json:"status"`
	Results   []ScenarioResult `json:"results"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	NotRun    int              `json:"not_run"`
	Aborted   bool             `json:"aborted"`
	Fatal     string           `json:"fatal,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  int64            `json:"duration_ms"`
}

// Tally recomputes the counters and status from Results. Total must already
// hold the number of selected scenarios.
func (s *SuiteResult) Tally() {
	s.Passed, s.Failed = 0, 0
	for _, r := range s.Results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	s.NotRun = s.Total - len(s.Results)
	if s.NotRun < 0 {
		s.NotRun = 0
	}
	switch {
	case s.Fatal != "":
		s.Status = StatusError
	case s.Failed > 0 || s.NotRun > 0:
		s.Status = StatusFailed
	default:
		s.Status = StatusPassed
	}
}

// Run converts the result into its stored form
func (s SuiteResult) Run() SuiteRun {
	started := s.StartedAt
	completed := started.Add(time.Duration(s.Duration) * time.Millisecond)
	return SuiteRun{
		ID:           s.RunID,
		Category:     s.Category,
		Status:       s.Status,
		Total:        s.Total,
		Passed:       s.Passed,
		Failed:       s.Failed,
		NotRun:       s.NotRun,
		StartedAt:    &started,
		CompletedAt:  &completed,
		ErrorMessage: s.Fatal,
		Results:      s.Results,
	}
}

// ==================== Temporal Input Types ====================

// SuiteInput represents input for the suite workflow
type SuiteInput struct {
	RunID     string            `json:"run_id"`
	Category  Category          `json:"category"`
	Scenarios []string          `json:"scenarios,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Parallel  int               `json:"parallel"`
	MaxFail   int               `json:"max_fail"`
	FailFast  bool              `json:"fail_fast"`
	Headless  bool              `json:"headless"`
}

// ScenarioInput represents input for running a single scenario activity
type ScenarioInput struct {
	RunID    string            `json:"run_id"`
	Name     string            `json:"name"`
	Params   map[string]string `json:"params,omitempty"`
	Headless bool              `json:"headless"`
}

// ScenarioRef names a selected scenario
type ScenarioRef struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// SuiteProgress is returned by the suite workflow's progress query
type SuiteProgress struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Running   []string `json:"running,omitempty"`
}

// ==================== API Request/Response Types ====================

// RunRequest represents a request to start a suite run
type RunRequest struct {
	Category  string            `json:"category"`
	Scenarios []string          `json:"scenarios,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Parallel  int               `json:"parallel"`
	MaxFail   int               `json:"max_fail"`
	FailFast  bool              `json:"fail_fast"`
	Headless  *bool             `json:"headless,omitempty"`
}

// ScenarioSummary describes a catalog entry
type ScenarioSummary struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Steps       int      `json:"steps"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ScenarioStatusUpdate represents a status update for a single scenario
type ScenarioStatusUpdate struct {
	RunID    string    `json:"run_id"`
	Name     string    `json:"name"`
	Status   RunStatus `json:"status"`
	Message  string    `json:"message,omitempty"`
	Duration int64     `json:"duration_ms,omitempty"`
}

// ==================== RRWeb Event Types ====================

// RRWeb event type constants
const (
	RRWebEventDomContentLoaded = 0
	RRWebEventLoad             = 1
	RRWebEventFullSnapshot     = 2
	RRWebEventIncremental      = 3
	RRWebEventMeta             = 4
	RRWebEventCustom           = 5
)

// RRWeb incremental source types
const (
	SourceMutation         = 0 // DOM mutations (adds, removes, changes)
	SourceMouseMove        = 1
	SourceMouseInteraction = 2 // Clicks, focus, context menu
	SourceScroll           = 3
	SourceViewportResize   = 4
	SourceInput            = 5 // Form input changes
	SourceTouchMove        = 6
	SourceDrag             = 12
)

// MouseInteraction types (for SourceMouseInteraction)
const (
	MouseInteractionMouseUp     = 0
	MouseInteractionMouseDown   = 1
	MouseInteractionClick       = 2
	MouseInteractionContextMenu = 3
	MouseInteractionDblClick    = 4
	MouseInteractionFocus       = 5
	MouseInteractionBlur        = 6
)

// RRWebEvent is one entry of a recording
type RRWebEvent struct {
	Type      int             `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// RRWebMetaData represents meta event data
type RRWebMetaData struct {
	Href   string `json:"href"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RRWebFullSnapshot represents full snapshot event data
type RRWebFullSnapshot struct {
	Node SerializedNode `json:"node"`
}

// RRWebIncrementalData represents incremental snapshot data
type RRWebIncrementalData struct {
	Source     int                 `json:"source"`
	Type       int                 `json:"type,omitempty"` // Mouse event type
	ID         int                 `json:"id,omitempty"`
	X          float64             `json:"x,omitempty"`
	Y          float64             `json:"y,omitempty"`
	Width      int                 `json:"width,omitempty"`
	Height     int                 `json:"height,omitempty"`
	Text       string              `json:"text,omitempty"`
	IsChecked  bool                `json:"isChecked,omitempty"`
	Adds       []NodeAddition      `json:"adds,omitempty"`
	Removes    []NodeRemoval       `json:"removes,omitempty"`
	Texts      []TextMutation      `json:"texts,omitempty"`
	Attributes []AttributeMutation `json:"attributes,omitempty"`
}

// NodeAddition represents a DOM node addition
type NodeAddition struct {
	ParentID int            `json:"parentId"`
	Node     SerializedNode `json:"node"`
}

// NodeRemoval represents a DOM node removal
type NodeRemoval struct {
	ParentID int `json:"parentId"`
	ID       int `json:"id"`
}

// TextMutation represents a text node change
type TextMutation struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// AttributeMutation represents attribute changes on a node
type AttributeMutation struct {
	ID         int                    `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// SerializedNode represents a serialized DOM node
type SerializedNode struct {
	ID          int                    `json:"id"`
	Type        int                    `json:"type"`
	TagName     string                 `json:"tagName,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	ChildNodes  []SerializedNode       `json:"childNodes,omitempty"`
	TextContent string                 `json:"textContent,omitempty"`
}
