package models

import (
	"time"
)

// Run type constants
const (
	RunTypeScheduled = "scheduled"
	RunTypeManual    = "manual"
	RunTypeCLI       = "cli"
)

// Pipeline phase names, used in run error records
const (
	PhaseIngest   = "ingest"
	PhaseFeatures = "features"
	PhaseForecast = "forecast"
	PhasePredict  = "predict"
	PhaseEnsemble = "ensemble"
	PhasePersist  = "persist"
	PhasePublish  = "publish"
)

// Run error kinds, classified by effect
const (
	ErrKindTransient     = "transient_external"
	ErrKindFatalExternal = "fatal_external"
	ErrKindDataInvalid   = "data_invalid"
	ErrKindPolicySkip    = "policy_skip"
	ErrKindOrchestration = "orchestration_fatal"
)

// MaxRunErrors bounds the error list persisted with a run log. Errors past
// the bound are counted but not stored.
const MaxRunErrors = 50

// RunError is one structured error record inside a run log.
type RunError struct {
	PropertyID int64     `json:"property_id,omitempty"`
	Phase      string    `json:"phase"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PipelineRun is the run log: exactly one row per pipeline execution.
type PipelineRun struct {
	ID                       string            `json:"id"`
	RunDate                  time.Time         `json:"run_date"`
	RunType                  string            `json:"run_type"`
	UserID                   *int64            `json:"user_id,omitempty"`
	PropertiesProcessed      int               `json:"properties_processed"`
	RecommendationsGenerated int               `json:"recommendations_generated"`
	PropertiesSkipped        int               `json:"properties_skipped"`
	ErrorsCount              int               `json:"errors_count"`
	ExecutionTimeSeconds     float64           `json:"execution_time_seconds"`
	ModelVersions            map[string]string `json:"model_versions,omitempty"`
	Errors                   []RunError        `json:"errors,omitempty"`
	StartedAt                time.Time         `json:"started_at"`
	FinishedAt               time.Time         `json:"finished_at"`
}

// AddError appends a structured error, keeping the stored list bounded.
// The counter always increments. policy_skip records are not errors and
// must not be added here.
func (r *PipelineRun) AddError(e RunError) {
	r.ErrorsCount++
	if len(r.Errors) < MaxRunErrors {
		r.Errors = append(r.Errors, e)
	}
}
