package models

import "time"

// ExecutionStatus is the terminal state of one pipeline run. Exactly one
// status applies per run.
type ExecutionStatus string

const (
	StatusSuccess             ExecutionStatus = "success"
	StatusProviderUnavailable ExecutionStatus = "provider_unavailable"
	StatusPlanError           ExecutionStatus = "plan_error"
	StatusValidationError     ExecutionStatus = "validation_error"
	StatusSQLError            ExecutionStatus = "sql_error"
	// StatusInterpretationError is reserved in the taxonomy. The orchestrator
	// downgrades interpretation failures to success with a fallback
	// explanation, so this status never appears on an outcome.
	StatusInterpretationError ExecutionStatus = "interpretation_error"
)

// ResultSet holds rows returned from the warehouse. Values are rendered as
// strings; the interpretation step only ever sees a textual sample.
type ResultSet struct {
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
}

// Interpretation is the structured business-readable answer. Fallback marks
// a deterministic explanation generated when the provider could not
// interpret the rows.
type Interpretation struct {
	Answer         string   `json:"answer"`
	KeyFindings    []string `json:"key_findings,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Fallback       bool     `json:"fallback,omitempty"`
}

// PhaseTimings is the per-phase latency breakdown of a run. Phases are
// sequential, so PlanGen + SQLExec + Interpret <= Total.
type PhaseTimings struct {
	PlanGen   time.Duration `json:"plan_gen"`
	SQLExec   time.Duration `json:"sql_exec"`
	Interpret time.Duration `json:"interpret"`
	Total     time.Duration `json:"total"`
}

// ExecutionOutcome is the end state of one pipeline run, success or failure.
type ExecutionOutcome struct {
	ExecutionID    string            `json:"execution_id"`
	Status         ExecutionStatus   `json:"status"`
	Question       string            `json:"question"`
	AssetID        string            `json:"asset_id"`
	Provider       string            `json:"provider,omitempty"`
	Model          string            `json:"model,omitempty"`
	Plan           *ExecutionPlan    `json:"plan,omitempty"`
	Validation     *ValidationResult `json:"validation,omitempty"`
	SQL            string            `json:"sql,omitempty"`
	Complexity     QueryComplexity   `json:"complexity,omitempty"`
	Results        *ResultSet        `json:"results,omitempty"`
	Interpretation *Interpretation   `json:"interpretation,omitempty"`
	Error          string            `json:"error,omitempty"`
	Hint           string            `json:"hint,omitempty"`
	Timings        PhaseTimings      `json:"timings"`
}
