// Package database persists suite runs and scenario results.
package database

import (
	"context"

	"dev/bravebird/storefront-e2e/pkg/models"
)

// Store records suite runs and their scenario results. Get methods return
// nil without error when nothing matches.
type Store interface {
	CreateRun(ctx context.Context, run *models.SuiteRun) error
	UpdateRun(ctx context.Context, run *models.SuiteRun) error
	GetRun(ctx context.Context, id string) (*models.SuiteRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SuiteRun, error)

	SaveResult(ctx context.Context, result *models.ScenarioResult) error
	GetResults(ctx context.Context, runID string) ([]models.ScenarioResult, error)

	Close() error
}

// SaveSuite stores a finished suite: its run row, then every result.
func SaveSuite(ctx context.Context, s Store, res models.SuiteResult) error {
	run := res.Run()
	existing, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		err = s.CreateRun(ctx, &run)
	} else {
		run.TemporalWorkflowID = existing.TemporalWorkflowID
		run.TemporalRunID = existing.TemporalRunID
		err = s.UpdateRun(ctx, &run)
	}
	if err != nil {
		return err
	}
	for i := range res.Results {
		r := res.Results[i]
		r.RunID = run.ID
		if err := s.SaveResult(ctx, &r); err != nil {
			return err
		}
	}
	return nil
}
