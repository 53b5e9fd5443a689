package models

import (
	"encoding/json"
	"time"
)

// AuditRecord is the persisted history of one pipeline run. Records are
// append-only; the audit table is created lazily on first missing-table
// error.
type AuditRecord struct {
	ExecutionID        string          `json:"execution_id"`
	Question           string          `json:"question"`
	AssetID            string          `json:"asset_id"`
	Provider           string          `json:"provider"`
	Model              string          `json:"model"`
	PlanJSON           string          `json:"plan_json,omitempty"`
	ValidationError    string          `json:"validation_error,omitempty"`
	SQLText            string          `json:"sql_text,omitempty"`
	Status             ExecutionStatus `json:"status"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	RowCount           int             `json:"row_count"`
	PlanLatencyMS      int64           `json:"plan_latency_ms"`
	SQLLatencyMS       int64           `json:"sql_latency_ms"`
	InterpretLatencyMS int64           `json:"interpret_latency_ms"`
	TotalLatencyMS     int64           `json:"total_latency_ms"`
	CreatedAt          time.Time       `json:"created_at"`
}

// AuditRecordFromOutcome builds the audit record for a terminal outcome.
func AuditRecordFromOutcome(o *ExecutionOutcome) *AuditRecord {
	rec := &AuditRecord{
		ExecutionID:        o.ExecutionID,
		Question:           o.Question,
		AssetID:            o.AssetID,
		Provider:           o.Provider,
		Model:              o.Model,
		SQLText:            o.SQL,
		Status:             o.Status,
		ErrorMessage:       o.Error,
		PlanLatencyMS:      o.Timings.PlanGen.Milliseconds(),
		SQLLatencyMS:       o.Timings.SQLExec.Milliseconds(),
		InterpretLatencyMS: o.Timings.Interpret.Milliseconds(),
		TotalLatencyMS:     o.Timings.Total.Milliseconds(),
		CreatedAt:          time.Now().UTC(),
	}
	if o.Plan != nil {
		if b, err := json.Marshal(o.Plan); err == nil {
			rec.PlanJSON = string(b)
		}
	}
	if o.Validation != nil {
		rec.ValidationError = o.Validation.ErrorText()
	}
	if o.Results != nil {
		rec.RowCount = o.Results.RowCount
	}
	return rec
}

// AuditStats aggregates N days of audit records for operational dashboards.
type AuditStats struct {
	Days         int            `json:"days"`
	TotalRuns    int            `json:"total_runs"`
	SuccessRate  float64        `json:"success_rate"`
	AvgLatencyMS float64        `json:"avg_latency_ms"`
	StatusCounts map[string]int `json:"status_counts"`
	TopErrors    []ErrorCount   `json:"top_errors"`
}

// ErrorCount is one distinct error message with its occurrence count.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
