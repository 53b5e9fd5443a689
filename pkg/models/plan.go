package models

import "strings"

// IntentKind classifies what kind of analysis the model intends.
type IntentKind string

const (
	IntentTrend        IntentKind = "trend"
	IntentRootCause    IntentKind = "root_cause"
	IntentComparison   IntentKind = "comparison"
	IntentDistribution IntentKind = "distribution"
	IntentImpact       IntentKind = "impact"
	IntentAnomaly      IntentKind = "anomaly"
)

// ExecutionPlan is the model's structured intent: which tables, columns and
// filters to query. It is never raw SQL, and it is untrusted until it has
// passed validation against a SchemaRegistry.
type ExecutionPlan struct {
	Intent         IntentKind     `json:"intent"`
	Tables         []string       `json:"tables"`
	Columns        []string       `json:"columns,omitempty"`
	Metrics        []string       `json:"metrics,omitempty"`
	Filters        map[string]any `json:"filters,omitempty"`
	GroupBy        []string       `json:"group_by,omitempty"`
	OrderBy        []string       `json:"order_by,omitempty"`
	Limit          *int           `json:"limit,omitempty"`
	TimeWindowDays *int           `json:"time_window_days,omitempty"`
}

// IsAggregated reports whether the plan produces aggregated output.
// Aggregated plans must not mix in ungrouped raw columns.
func (p *ExecutionPlan) IsAggregated() bool {
	return len(p.Metrics) > 0 || len(p.GroupBy) > 0
}

// ValidationResult is the outcome of checking a plan against a registry.
// Valid is true exactly when Errors is empty; warnings never block execution.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorText joins the validation errors into one diagnostic string.
func (v *ValidationResult) ErrorText() string {
	return strings.Join(v.Errors, "; ")
}

// QueryComplexity is an advisory classification of a built query, used for
// UI hinting only.
type QueryComplexity string

const (
	ComplexityLow    QueryComplexity = "low"
	ComplexityMedium QueryComplexity = "medium"
	ComplexityHigh   QueryComplexity = "high"
)

// BuiltQuery is the compiled SQL artifact produced from a validated plan.
type BuiltQuery struct {
	SQL        string          `json:"sql"`
	Complexity QueryComplexity `json:"complexity"`
}
