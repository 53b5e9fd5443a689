// Package sql contains the anti-hallucination plan validator, the
// deterministic SQL builder and the post-build safety gate.
package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// Soft caps. Values beyond these are flagged, not blocked: the system does
// not second-guess legitimately large windows, only surfaces them.
const (
	timeWindowWarnDays = 90
	limitWarnRows      = 1000
)

// functionExprPattern matches expressions that are syntactically function
// calls (leading identifier followed by an opening paren). Function
// expressions over raw columns are not literal column names and are skipped
// by the group-by check.
var functionExprPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s*\(`)

// ValidatePlan is the single authority deciding whether model output is
// trustworthy enough to execute. Pure function over two immutable inputs:
// every identifier the plan references is checked against the registry,
// case-insensitively and tolerant of schema qualification, because models
// prefix names inconsistently. All errors are accumulated; only a missing
// table list short-circuits.
func ValidatePlan(plan *models.ExecutionPlan, registry *models.SchemaRegistry) models.ValidationResult {
	if plan == nil || len(plan.Tables) == 0 {
		return models.ValidationResult{
			Valid:  false,
			Errors: []string{"Plan must reference at least one table"},
		}
	}

	var errs, warns []string

	for _, table := range plan.Tables {
		if _, ok := registry.ResolveTable(table); !ok {
			errs = append(errs, fmt.Sprintf("Table not found in schema: %s", normalizeName(table)))
		}
	}

	for _, column := range plan.Columns {
		if !registry.HasColumn(plan.Tables, column) {
			errs = append(errs, fmt.Sprintf("Column not found in referenced tables: %s", normalizeName(column)))
		}
	}

	for _, metric := range plan.Metrics {
		col := metricColumn(metric)
		if col == "" || col == "*" {
			continue
		}
		if !registry.HasColumn(plan.Tables, col) {
			errs = append(errs, fmt.Sprintf("Metric column not found in referenced tables: %s", normalizeName(col)))
		}
	}

	if plan.TimeWindowDays != nil {
		switch days := *plan.TimeWindowDays; {
		case days < 0:
			errs = append(errs, fmt.Sprintf("time_window_days must be non-negative, got %d", days))
		case days > timeWindowWarnDays:
			warns = append(warns, fmt.Sprintf("time_window_days %d exceeds %d days; the query will scan significant history", days, timeWindowWarnDays))
		}
	}

	if plan.Limit != nil {
		switch limit := *plan.Limit; {
		case limit < 1:
			errs = append(errs, fmt.Sprintf("limit must be at least 1, got %d", limit))
		case limit > limitWarnRows:
			warns = append(warns, fmt.Sprintf("limit %d exceeds %d rows", limit, limitWarnRows))
		}
	}

	if len(plan.Columns) == 0 && len(plan.Metrics) == 0 {
		warns = append(warns, "no columns or metrics specified; the query will select all columns")
	}

	for _, expr := range plan.GroupBy {
		if functionExprPattern.MatchString(strings.TrimSpace(expr)) {
			continue
		}
		if !registry.HasColumn(plan.Tables, expr) {
			errs = append(errs, fmt.Sprintf("Group-by column not found in referenced tables: %s", normalizeName(expr)))
		}
	}

	return models.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
	}
}

// metricColumn extracts the column identifier a metric expression refers to:
// "AVG(METRIC_VALUE)" -> "METRIC_VALUE", "METRIC_VALUE" -> "METRIC_VALUE",
// "COUNT(*)" -> "*".
func metricColumn(metric string) string {
	metric = strings.TrimSpace(metric)
	open := strings.Index(metric, "(")
	if open < 0 {
		return metric
	}
	close := strings.LastIndex(metric, ")")
	if close <= open {
		return ""
	}
	inner := strings.TrimSpace(metric[open+1 : close])
	inner = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(inner), "DISTINCT "))
	return inner
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
