package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dev/bravebird/storefront-e2e/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// Schema creates the tables used by DB. Migrate applies it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS suite_runs (
		id VARCHAR(36) PRIMARY KEY,
		category VARCHAR(32) NOT NULL,
		temporal_workflow_id VARCHAR(255),
		temporal_run_id VARCHAR(255),
		status VARCHAR(16) NOT NULL,
		total INT NOT NULL DEFAULT 0,
		passed INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		not_run INT NOT NULL DEFAULT 0,
		started_at DATETIME(3) NULL,
		completed_at DATETIME(3) NULL,
		error_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS scenario_results (
		id VARCHAR(36) PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		error_kind VARCHAR(32),
		error_message TEXT,
		failed_step INT NOT NULL DEFAULT -1,
		screenshots TEXT,
		steps MEDIUMTEXT,
		started_at DATETIME(3) NULL,
		completed_at DATETIME(3) NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		INDEX idx_results_run (run_id)
	)`,
}

// DB is the MySQL-backed Store.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// New creates a new database connection. The DSN must set parseTime=true.
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates missing tables.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// ==================== Suite Runs ====================

// CreateRun inserts a suite run.
func (db *DB) CreateRun(ctx context.Context, run *models.SuiteRun) error {
	query := `
		INSERT INTO suite_runs (id, category, temporal_workflow_id, temporal_run_id, status,
		                        total, passed, failed, not_run, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Category,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.Status,
		run.Total,
		run.Passed,
		run.Failed,
		run.NotRun,
		run.StartedAt,
		run.CompletedAt,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun rewrites a run's status, counters and timestamps.
func (db *DB) UpdateRun(ctx context.Context, run *models.SuiteRun) error {
	query := `
		UPDATE suite_runs
		SET status = ?, total = ?, passed = ?, failed = ?, not_run = ?,
		    temporal_workflow_id = ?, temporal_run_id = ?,
		    started_at = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.Status,
		run.Total,
		run.Passed,
		run.Failed,
		run.NotRun,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.StartedAt,
		run.CompletedAt,
		run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

const runColumns = `id, category, COALESCE(temporal_workflow_id, ''), COALESCE(temporal_run_id, ''),
		       status, total, passed, failed, not_run, started_at, completed_at,
		       COALESCE(error_message, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (models.SuiteRun, error) {
	var run models.SuiteRun
	err := row.Scan(
		&run.ID,
		&run.Category,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&run.NotRun,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
	)
	return run, err
}

// GetRun retrieves a suite run with its results.
func (db *DB) GetRun(ctx context.Context, id string) (*models.SuiteRun, error) {
	query := `SELECT ` + runColumns + ` FROM suite_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Results, err = db.GetResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, without results.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.SuiteRun, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + runColumns + ` FROM suite_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SuiteRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ==================== Scenario Results ====================

// SaveResult inserts or replaces a scenario result.
func (db *DB) SaveResult(ctx context.Context, result *models.ScenarioResult) error {
	screenshots, err := json.Marshal(result.Screenshots)
	if err != nil {
		return err
	}
	steps, err := json.Marshal(result.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scenario_results (id, run_id, name, category, status, error_kind, error_message,
		                              failed_step, screenshots, steps, started_at, completed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), error_kind = VALUES(error_kind), error_message = VALUES(error_message),
			failed_step = VALUES(failed_step), screenshots = VALUES(screenshots), steps = VALUES(steps),
			completed_at = VALUES(completed_at), duration_ms = VALUES(duration_ms)
	`

	_, err = db.conn.ExecContext(ctx, query,
		result.ID,
		result.RunID,
		result.Name,
		result.Category,
		result.Status,
		result.ErrorKind,
		result.ErrorMessage,
		result.FailedStep,
		string(screenshots),
		string(steps),
		result.StartedAt,
		result.CompletedAt,
		result.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResults retrieves every result of a run in start order.
func (db *DB) GetResults(ctx context.Context, runID string) ([]models.ScenarioResult, error) {
	query := `
		SELECT id, run_id, name, category, status, COALESCE(error_kind, ''), COALESCE(error_message, ''),
		       failed_step, COALESCE(screenshots, 'null'), COALESCE(steps, 'null'),
		       started_at, completed_at, duration_ms
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY started_at
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []models.ScenarioResult
	for rows.Next() {
		var r models.ScenarioResult
		var screenshots, steps string
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Name,
			&r.Category,
			&r.Status,
			&r.ErrorKind,
			&r.ErrorMessage,
			&r.FailedStep,
			&screenshots,
			&steps,
			&r.StartedAt,
			&r.CompletedAt,
			&r.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(screenshots), &r.Screenshots); err != nil {
			return nil, fmt.Errorf("failed to decode screenshots: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
