package sql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// defaultLimit caps queries whose plan specifies no limit.
const defaultLimit = 100

// legacyTables use separate database/schema/table name columns for asset
// filtering instead of the composite ASSET_ID column.
var legacyTables = map[string]bool{
	"DQ_CHECK_RESULTS": true,
	"DQ_SCAN_HISTORY":  true,
}

// tableTimeColumns maps each time-filterable table to its time column.
// Tables absent from this map get no time filter: the builder never guesses
// a time column.
var tableTimeColumns = map[string]string{
	"DQ_METRICS":       "METRIC_TIME",
	"DQ_CHECK_RESULTS": "CHECK_TIME",
	"DQ_SCAN_HISTORY":  "SCAN_TIME",
	"DQ_ANOMALIES":     "DETECTED_AT",
	"DQ_ASSET_PROFILE": "PROFILED_AT",
}

// reservedFilterKeys are filter keys the builder handles itself; a plan
// repeating them is skipped rather than doubled.
var reservedFilterKeys = map[string]bool{
	"asset_id":         true,
	"database_name":    true,
	"schema_name":      true,
	"table_name":       true,
	"time_window_days": true,
}

// BuildQuery compiles an already-validated plan into one deterministic SQL
// string. The model never sees or influences syntax, only semantics. The
// finished SQL passes through the post-build safety gate before being
// returned; a gate rejection is fatal.
func BuildQuery(plan *models.ExecutionPlan, assetID string) (models.BuiltQuery, error) {
	if plan == nil || len(plan.Tables) == 0 {
		return models.BuiltQuery{}, fmt.Errorf("cannot build query from empty plan")
	}

	tables := make([]string, len(plan.Tables))
	for i, t := range plan.Tables {
		tables[i] = normalizeName(t)
	}
	primary := bareName(tables[0])

	selectList := buildSelectList(plan)

	where := []string{"1=1"}
	assetPred, err := assetFilter(primary, assetID)
	if err != nil {
		return models.BuiltQuery{}, err
	}
	where = append(where, assetPred...)

	if plan.TimeWindowDays != nil && *plan.TimeWindowDays > 0 {
		if timeCol, ok := tableTimeColumns[primary]; ok {
			where = append(where, fmt.Sprintf(
				"%s >= DATEADD(day, -%d, CURRENT_TIMESTAMP())", timeCol, *plan.TimeWindowDays))
		}
	}

	filterPreds, err := filterPredicates(plan.Filters)
	if err != nil {
		return models.BuiltQuery{}, err
	}
	where = append(where, filterPreds...)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s",
		strings.Join(selectList, ", "),
		strings.Join(tables, ", "),
		strings.Join(where, " AND "))

	if len(plan.GroupBy) > 0 {
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(plan.GroupBy, ", "))
	}
	if len(plan.OrderBy) > 0 {
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(plan.OrderBy, ", "))
	}

	limit := defaultLimit
	if plan.Limit != nil && *plan.Limit > 0 {
		limit = *plan.Limit
	}
	fmt.Fprintf(&b, " LIMIT %d", limit)

	sqlText := b.String()

	if err := CheckQuerySafety(sqlText); err != nil {
		return models.BuiltQuery{}, err
	}

	return models.BuiltQuery{
		SQL:        sqlText,
		Complexity: classifyComplexity(plan, limit),
	}, nil
}

// buildSelectList assembles the SELECT list. Aggregated plans take group-by
// expressions plus metrics and never append raw columns, preventing the
// classic ungrouped-column-with-aggregate error.
func buildSelectList(plan *models.ExecutionPlan) []string {
	if plan.IsAggregated() {
		list := make([]string, 0, len(plan.GroupBy)+len(plan.Metrics))
		list = append(list, plan.GroupBy...)
		list = append(list, plan.Metrics...)
		return list
	}
	if len(plan.Columns) > 0 {
		return plan.Columns
	}
	return []string{"*"}
}

// assetFilter builds the asset-identity predicate. Legacy tables are
// filtered by split database/schema/table name columns; everything else by
// the composite ASSET_ID column.
func assetFilter(primaryTable, assetID string) ([]string, error) {
	if err := CheckFilterValue("asset_id", assetID); err != nil {
		return nil, err
	}
	assetID = strings.ToUpper(strings.TrimSpace(assetID))

	if legacyTables[primaryTable] {
		parts := strings.Split(assetID, ".")
		if len(parts) == 3 {
			return []string{
				fmt.Sprintf("UPPER(DATABASE_NAME) = '%s'", escapeLiteral(parts[0])),
				fmt.Sprintf("UPPER(SCHEMA_NAME) = '%s'", escapeLiteral(parts[1])),
				fmt.Sprintf("UPPER(TABLE_NAME) = '%s'", escapeLiteral(parts[2])),
			}, nil
		}
		return []string{fmt.Sprintf("UPPER(TABLE_NAME) = '%s'", escapeLiteral(assetID))}, nil
	}

	return []string{fmt.Sprintf("UPPER(ASSET_ID) = '%s'", escapeLiteral(assetID))}, nil
}

// filterPredicates renders plan filters in sorted key order so the output
// is byte-identical across calls. Strings compare upper-cased for
// case-insensitive matching; arrays become IN lists.
func filterPredicates(filters map[string]any) ([]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		if reservedFilterKeys[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var preds []string
	for _, key := range keys {
		pred, err := renderFilter(normalizeName(key), filters[key])
		if err != nil {
			return nil, err
		}
		if pred != "" {
			preds = append(preds, pred)
		}
	}
	return preds, nil
}

func renderFilter(column string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		if err := CheckFilterValue(column, v); err != nil {
			return "", err
		}
		return fmt.Sprintf("UPPER(%s) = '%s'", column, escapeLiteral(strings.ToUpper(v))), nil
	case float64:
		return fmt.Sprintf("%s = %s", column, strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int:
		return fmt.Sprintf("%s = %d", column, v), nil
	case bool:
		return fmt.Sprintf("%s = %t", column, v), nil
	case []any:
		if len(v) == 0 {
			return "", nil
		}
		items := make([]string, 0, len(v))
		for _, item := range v {
			rendered, err := renderInItem(column, item)
			if err != nil {
				return "", err
			}
			items = append(items, rendered)
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(items, ", ")), nil
	case nil:
		return fmt.Sprintf("%s IS NULL", column), nil
	default:
		return "", fmt.Errorf("unsupported filter value type %T for %s", value, column)
	}
}

func renderInItem(column string, item any) (string, error) {
	switch v := item.(type) {
	case string:
		if err := CheckFilterValue(column, v); err != nil {
			return "", err
		}
		return fmt.Sprintf("'%s'", escapeLiteral(strings.ToUpper(v))), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("unsupported IN-list value type %T for %s", item, column)
	}
}

// classifyComplexity scores a plan heuristically and buckets it for UI
// hinting. Advisory only; never blocks execution.
func classifyComplexity(plan *models.ExecutionPlan, limit int) models.QueryComplexity {
	score := 0
	if len(plan.Tables) > 1 {
		score += 2
	}
	if plan.TimeWindowDays != nil {
		if *plan.TimeWindowDays > 30 {
			score++
		}
		if *plan.TimeWindowDays > 60 {
			score++
		}
	}
	if len(plan.GroupBy) > 0 {
		score++
	}
	if len(plan.Columns)+len(plan.Metrics) > 10 {
		score++
	}
	if limit > 500 {
		score++
	}

	switch {
	case score <= 1:
		return models.ComplexityLow
	case score <= 3:
		return models.ComplexityMedium
	default:
		return models.ComplexityHigh
	}
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func bareName(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
