package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// AppendPipelineRun persists a completed run log. Each pipeline execution
// writes exactly one row; the model-version map and the bounded error list
// are stored as JSONB.
func (db *DB) AppendPipelineRun(run *models.PipelineRun) error {
	versions, err := json.Marshal(run.ModelVersions)
	if err != nil {
		return fmt.Errorf("failed to marshal model versions: %w", err)
	}
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal run errors: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (
			id, run_date, run_type, user_id, properties_processed,
			recommendations_generated, properties_skipped, errors_count,
			execution_time_seconds, model_versions, errors, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = db.conn.Exec(query,
		run.ID, run.RunDate, run.RunType, run.UserID, run.PropertiesProcessed,
		run.RecommendationsGenerated, run.PropertiesSkipped, run.ErrorsCount,
		run.ExecutionTimeSeconds, versions, errs, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append pipeline run: %w", err)
	}
	return nil
}

// GetPipelineRun retrieves a run log by ID
func (db *DB) GetPipelineRun(id string) (*models.PipelineRun, error) {
	query := selectRunColumns + ` WHERE id = $1`
	run, err := scanPipelineRun(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return run, nil
}

// ListPipelineRuns retrieves the most recent run logs, newest first
func (db *DB) ListPipelineRuns(limit int) ([]*models.PipelineRun, error) {
	query := selectRunColumns + ` ORDER BY started_at DESC LIMIT $1`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRunColumns = `
	SELECT id, run_date, run_type, user_id, properties_processed,
	       recommendations_generated, properties_skipped, errors_count,
	       execution_time_seconds, model_versions, errors, started_at, finished_at
	FROM pipeline_runs`

func scanPipelineRun(row rowScanner) (*models.PipelineRun, error) {
	var run models.PipelineRun
	var versions, errs []byte

	err := row.Scan(
		&run.ID, &run.RunDate, &run.RunType, &run.UserID, &run.PropertiesProcessed,
		&run.RecommendationsGenerated, &run.PropertiesSkipped, &run.ErrorsCount,
		&run.ExecutionTimeSeconds, &versions, &errs, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(versions) > 0 {
		if err := json.Unmarshal(versions, &run.ModelVersions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model versions: %w", err)
		}
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run errors: %w", err)
		}
	}
	return &run, nil
}
