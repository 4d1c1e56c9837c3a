package workflows

import (
	"errors"
	"strconv"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/storefront-e2e/pkg/models"
)

// TaskQueue is the queue the worker polls and the API submits to.
const TaskQueue = "storefront-e2e"

// ProgressQuery returns the live models.SuiteProgress of a suite.
const ProgressQuery = "getProgress"

// Activity names, matching the methods of activities.Activities.
const (
	SelectScenariosActivity = "SelectScenariosActivity"
	PreflightActivity       = "PreflightActivity"
	RunScenarioActivity     = "RunScenarioActivity"
	SaveSuiteActivity       = "SaveSuiteActivity"
)

// Application error types raised by the activities.
const (
	ErrTypeDriverUnavailable  = "DriverUnavailable"
	ErrTypeServiceUnreachable = "ServiceUnreachable"
	ErrTypeInvalidSelection   = "InvalidSelection"
)

// ScenarioTimeout bounds a single activity, including a whole scenario.
const ScenarioTimeout = 10 * time.Minute

// SuiteWorkflow runs a selection of scenarios, one activity each. Preflight
// runs first; a preflight failure or a fatal scenario error aborts the rest.
// Activities are never retried.
func SuiteWorkflow(ctx workflow.Context, input models.SuiteInput) (models.SuiteResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting suite workflow", "runID", input.RunID, "category", input.Category)

	start := workflow.Now(ctx)
	result := models.SuiteResult{
		RunID:     input.RunID,
		Category:  input.Category,
		StartedAt: start,
	}
	if result.Category == "" {
		result.Category = models.CategoryAll
	}
	progress := models.SuiteProgress{}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.SuiteProgress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ScenarioTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var refs []models.ScenarioRef
	if err := workflow.ExecuteActivity(ctx, SelectScenariosActivity, input).Get(ctx, &refs); err != nil {
		_, result.Fatal = failureKind(err)
	} else {
		result.Total = len(refs)
		progress.Total = len(refs)

		if err := workflow.ExecuteActivity(ctx, PreflightActivity).Get(ctx, nil); err != nil {
			_, result.Fatal = failureKind(err)
			logger.Error("Preflight failed", "error", result.Fatal)
		} else {
			result.Results, result.Fatal = runScenarios(ctx, input, refs, &progress)
		}
	}

	result.Duration = workflow.Now(ctx).Sub(start).Milliseconds()
	result.Aborted = len(result.Results) < result.Total
	result.Tally()
	if ctx.Err() != nil {
		result.Status = models.StatusCanceled
	}

	// Persist even when the workflow itself was canceled
	saveCtx, _ := workflow.NewDisconnectedContext(ctx)
	if err := workflow.ExecuteActivity(saveCtx, SaveSuiteActivity, result).Get(saveCtx, nil); err != nil {
		logger.Warn("Failed to save suite result", "error", err)
	}

	logger.Info("Suite workflow completed", "status", result.Status, "passed", result.Passed, "failed", result.Failed, "notRun", result.NotRun)
	return result, nil
}

// runScenarios keeps up to input.Parallel scenario activities in flight and
// returns their results in selection order plus the first fatal message.
func runScenarios(ctx workflow.Context, input models.SuiteInput, refs []models.ScenarioRef, progress *models.SuiteProgress) ([]models.ScenarioResult, string) {
	limit := input.Parallel
	if limit < 1 {
		limit = 1
	}
	runCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()

	done := make(map[int]models.ScenarioResult, len(refs))
	selector := workflow.NewSelector(ctx)
	next, inflight, failed := 0, 0, 0
	stopped := false
	fatal := ""

	launch := func(i int) {
		ref := refs[i]
		started := workflow.Now(ctx)
		progress.Running = append(progress.Running, ref.Name)

		future := workflow.ExecuteActivity(runCtx, RunScenarioActivity, models.ScenarioInput{
			RunID:    input.RunID,
			Name:     ref.Name,
			Params:   input.Params,
			Headless: input.Headless,
		})
		selector.AddFuture(future, func(f workflow.Future) {
			var res models.ScenarioResult
			if err := f.Get(ctx, &res); err != nil {
				res = failedResult(input.RunID+"-"+strconv.Itoa(i), ref, err, started, workflow.Now(ctx))
			}
			res.RunID = input.RunID
			done[i] = res

			progress.Running = without(progress.Running, ref.Name)
			progress.Completed++
			if res.Passed() {
				progress.Passed++
				return
			}
			progress.Failed++
			failed++

			switch {
			case res.ErrorKind.IsFatal():
				if fatal == "" {
					fatal = res.ErrorMessage
				}
				stopped = true
				cancel()
			case input.FailFast:
				stopped = true
			case input.MaxFail > 0 && failed >= input.MaxFail:
				stopped = true
			}
		})
	}

	for ; inflight < limit && next < len(refs); next++ {
		launch(next)
		inflight++
	}
	for inflight > 0 {
		selector.Select(ctx)
		inflight--
		if !stopped && next < len(refs) {
			launch(next)
			next++
			inflight++
		}
	}

	results := make([]models.ScenarioResult, 0, len(done))
	for i := range refs {
		if r, ok := done[i]; ok {
			results = append(results, r)
		}
	}
	return results, fatal
}

// failedResult records a scenario whose activity failed outright.
func failedResult(id string, ref models.ScenarioRef, err error, started, ended time.Time) models.ScenarioResult {
	kind, msg := failureKind(err)
	status := models.StatusError
	var canceled *temporal.CanceledError
	if errors.As(err, &canceled) {
		status = models.StatusCanceled
	}
	return models.ScenarioResult{
		ID:           id,
		Name:         ref.Name,
		Category:     ref.Category,
		Status:       status,
		ErrorKind:    kind,
		ErrorMessage: msg,
		FailedStep:   -1,
		StartedAt:    &started,
		CompletedAt:  &ended,
		Duration:     ended.Sub(started).Milliseconds(),
	}
}

// failureKind maps an activity error onto the error taxonomy.
func failureKind(err error) (models.ErrorKind, string) {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case ErrTypeDriverUnavailable:
			return models.ErrorDriverUnavailable, appErr.Error()
		case ErrTypeServiceUnreachable:
			return models.ErrorServiceUnreachable, appErr.Error()
		}
		return models.ErrorFatal, appErr.Error()
	}
	var canceled *temporal.CanceledError
	if errors.As(err, &canceled) {
		return models.ErrorNone, "canceled"
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return models.ErrorTimeout, timeoutErr.Error()
	}
	return models.ErrorFatal, err.Error()
}

func without(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i:i], names[i+1:]...)
		}
	}
	return names
}
