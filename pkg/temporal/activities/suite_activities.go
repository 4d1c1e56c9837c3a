package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/storefront-e2e/pkg/database"
	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/preflight"
	"dev/bravebird/storefront-e2e/pkg/scenario"
	"dev/bravebird/storefront-e2e/pkg/suite"
	"dev/bravebird/storefront-e2e/pkg/temporal/workflows"
)

// Activities holds activity implementations
type Activities struct {
	Catalog *scenario.Catalog
	Runner  *scenario.Runner

	// OpenerFor returns the session opener for the requested headless mode.
	OpenerFor func(headless bool) suite.Opener

	// Checker and Targets back PreflightActivity; a nil Checker skips it.
	Checker *preflight.Checker
	Targets []preflight.Target

	// Store receives finished suites; nil disables persistence.
	Store database.Store
}

// SelectScenariosActivity resolves the category and names of a suite input
// against the catalog.
func (a *Activities) SelectScenariosActivity(ctx context.Context, input models.SuiteInput) ([]models.ScenarioRef, error) {
	logger := activity.GetLogger(ctx)

	category := input.Category
	if category == "" {
		category = models.CategoryAll
	}
	selected, err := a.Catalog.Select(category, input.Scenarios)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), workflows.ErrTypeInvalidSelection, nil)
	}

	refs := make([]models.ScenarioRef, 0, len(selected))
	for _, sc := range selected {
		refs = append(refs, models.ScenarioRef{Name: sc.Name, Category: sc.Category})
	}
	logger.Info("Selected scenarios", "category", category, "count", len(refs))
	return refs, nil
}

// PreflightActivity checks that the frontend and backend answer.
func (a *Activities) PreflightActivity(ctx context.Context) error {
	if a.Checker == nil {
		return nil
	}
	if err := a.Checker.Check(ctx, a.Targets...); err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), workflows.ErrTypeServiceUnreachable, nil)
	}
	return nil
}

// RunScenarioActivity runs one scenario in a fresh browser session. Scenario
// failures are reported in the result; only a missing browser fails the
// activity.
func (a *Activities) RunScenarioActivity(ctx context.Context, input models.ScenarioInput) (models.ScenarioResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running scenario", "runID", input.RunID, "scenario", input.Name)

	sc, ok := a.Catalog.Get(input.Name)
	if !ok {
		return models.ScenarioResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown scenario %q", input.Name), workflows.ErrTypeInvalidSelection, nil)
	}

	sess, err := a.OpenerFor(input.Headless).Open(ctx)
	if err != nil {
		kind := scenario.Classify(err)
		if kind == models.ErrorDriverUnavailable {
			return models.ScenarioResult{}, temporal.NewNonRetryableApplicationError(err.Error(), workflows.ErrTypeDriverUnavailable, nil)
		}
		return models.ScenarioResult{}, temporal.NewNonRetryableApplicationError(err.Error(), string(kind), nil)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close session", "scenario", input.Name, "error", err)
		}
	}()

	activity.RecordHeartbeat(ctx, input.Name)
	res := a.Runner.WithParams(input.Params).Run(ctx, sess, sc)
	res.RunID = input.RunID

	logger.Info("Scenario finished", "scenario", input.Name, "status", res.Status, "duration", res.Duration)
	return res, nil
}

// SaveSuiteActivity persists a finished suite and its results.
func (a *Activities) SaveSuiteActivity(ctx context.Context, result models.SuiteResult) error {
	if a.Store == nil {
		return nil
	}
	if err := database.SaveSuite(ctx, a.Store, result); err != nil {
		return fmt.Errorf("failed to save suite: %w", err)
	}
	return nil
}
