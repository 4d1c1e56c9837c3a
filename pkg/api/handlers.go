package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"dev/bravebird/storefront-e2e/pkg/database"
	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/temporal/workflows"
)

// SuiteWorkflowName is the registered name of workflows.SuiteWorkflow.
const SuiteWorkflowName = "SuiteWorkflow"

// Handlers contains API handlers
type Handlers struct {
	store          database.Store
	temporalClient client.Client
	catalog        *scenario.Catalog
	screenshotDir  string
	headless       bool
	pollInterval   time.Duration
	upgrader       websocket.Upgrader
	log            logrus.FieldLogger
}

// Options configure the handlers.
type Options struct {
	ScreenshotDir string
	Headless      bool // used when a run request leaves it unset
}

// NewHandlers creates new API handlers. temporalClient may be nil, in which
// case runs cannot be started.
func NewHandlers(
	store database.Store,
	temporalClient client.Client,
	catalog *scenario.Catalog,
	opts Options,
	log logrus.FieldLogger,
) *Handlers {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		catalog:        catalog,
		screenshotDir:  opts.ScreenshotDir,
		headless:       opts.Headless,
		pollInterval:   500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Health reports that the server is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==================== Scenario Handlers ====================

// ListScenarios lists the catalog, optionally filtered by ?category=
func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	selected, err := h.catalog.Select(category, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]models.ScenarioSummary, 0, len(selected))
	for _, sc := range selected {
		out = append(out, models.ScenarioSummary{
			Name:        sc.Name,
			Category:    sc.Category,
			Description: sc.Description,
			Steps:       len(sc.Steps),
		})
	}
	respondJSON(w, out)
}

// ==================== Run Handlers ====================

// StartRun records a suite run and starts its Temporal workflow
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	selected, err := h.catalog.Select(category, req.Scenarios)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(selected) == 0 {
		http.Error(w, "No scenarios selected", http.StatusBadRequest)
		return
	}

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}
	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	// Create run record
	now := time.Now()
	run := &models.SuiteRun{
		ID:        uuid.New().String(),
		Category:  category,
		Status:    models.StatusPending,
		Total:     len(selected),
		StartedAt: &now,
	}
	if err := h.store.CreateRun(ctx, run); err != nil {
		http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	headless := h.headless
	if req.Headless != nil {
		headless = *req.Headless
	}
	input := models.SuiteInput{
		RunID:     run.ID,
		Category:  category,
		Scenarios: req.Scenarios,
		Params:    req.Params,
		Parallel:  req.Parallel,
		MaxFail:   req.MaxFail,
		FailFast:  req.FailFast,
		Headless:  headless,
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("suite-%s", run.ID),
		TaskQueue: workflows.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, SuiteWorkflowName, input)
	if err != nil {
		run.Status = models.StatusError
		run.ErrorMessage = err.Error()
		if uerr := h.store.UpdateRun(ctx, run); uerr != nil {
			h.log.WithError(uerr).WithField("run_id", run.ID).Warn("Failed to record start failure")
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Update run with Temporal IDs
	run.TemporalWorkflowID = we.GetID()
	run.TemporalRunID = we.GetRunID()
	run.Status = models.StatusRunning
	if err := h.store.UpdateRun(ctx, run); err != nil {
		h.log.WithError(err).WithField("run_id", run.ID).Warn("Failed to record workflow IDs")
	}
	h.log.WithFields(logrus.Fields{"run_id": run.ID, "workflow_id": run.TemporalWorkflowID, "total": run.Total}).Info("Suite run started")

	respondJSON(w, map[string]interface{}{
		"run_id":               run.ID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
		"total":                run.Total,
	})
}

// ListRuns lists suite runs, most recent first
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.SuiteRun{}
	}

	respondJSON(w, runs)
}

// GetRun retrieves a suite run with its scenario results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	respondJSON(w, run)
}

// CancelRun cancels a running suite
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status.Finished() {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}

	// Cancel Temporal workflow
	if run.TemporalWorkflowID != "" {
		if h.temporalClient == nil {
			http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
			return
		}
		err = h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID)
		if err != nil {
			http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	run.Status = models.StatusCanceled
	run.ErrorMessage = "Cancelled by user"
	if err := h.store.UpdateRun(ctx, run); err != nil {
		h.log.WithError(err).WithField("run_id", id).Warn("Failed to record cancellation")
	}

	respondJSON(w, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams run updates via WebSocket until the run finishes
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reading surfaces the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	// Poll for updates
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus
	lastCompleted := -1
	sent := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var status models.RunStatus
			var progress models.SuiteProgress
			var results []models.ScenarioResult
			workflowID := "suite-" + runID

			if h.store != nil {
				run, err := h.store.GetRun(ctx, runID)
				if err == nil && run != nil {
					status = run.Status
					results = run.Results
					progress = models.SuiteProgress{Total: run.Total, Completed: len(run.Results), Passed: run.Passed, Failed: run.Failed}
					if run.TemporalWorkflowID != "" {
						workflowID = run.TemporalWorkflowID
					}
				}
			}

			// Live progress from the workflow while it is still running
			if h.temporalClient != nil && !status.Finished() {
				queryResp, err := h.temporalClient.QueryWorkflow(ctx, workflowID, "", workflows.ProgressQuery)
				if err == nil {
					var live models.SuiteProgress
					if queryResp.Get(&live) == nil {
						progress = live
						if status == "" {
							status = models.StatusRunning
						}
					}
				}
			}

			if status == "" {
				continue
			}

			// One scenario_update per result not yet sent
			for ; sent < len(results); sent++ {
				res := results[sent]
				msg := models.WSMessage{
					Type: "scenario_update",
					Payload: models.ScenarioStatusUpdate{
						RunID:    runID,
						Name:     res.Name,
						Status:   res.Status,
						Message:  res.ErrorMessage,
						Duration: res.Duration,
					},
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}

			// Send update if status or progress changed
			if status != lastStatus || progress.Completed != lastCompleted {
				msg := models.WSMessage{
					Type: "run_update",
					Payload: map[string]interface{}{
						"run_id":   runID,
						"status":   status,
						"progress": progress,
						"results":  results,
					},
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}

				lastStatus = status
				lastCompleted = progress.Completed

				// Close if completed
				if status.Finished() {
					return
				}
			}
		}
	}
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only serve files directly inside the screenshot directory
	filePath := filepath.Join(h.screenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
