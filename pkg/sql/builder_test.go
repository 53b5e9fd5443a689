package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

const testAsset = "PI_QUALYTICS.BANKING.CUSTOMER"

func trendPlan() *models.ExecutionPlan {
	return &models.ExecutionPlan{
		Intent:         models.IntentTrend,
		Tables:         []string{"DQ_METRICS"},
		Metrics:        []string{"AVG(METRIC_VALUE)"},
		GroupBy:        []string{"DATE(METRIC_TIME)"},
		TimeWindowDays: intPtr(7),
	}
}

func TestBuildQuery_HappyPath(t *testing.T) {
	built, err := BuildQuery(trendPlan(), testAsset)
	require.NoError(t, err)

	assert.Contains(t, built.SQL, "SELECT DATE(METRIC_TIME), AVG(METRIC_VALUE)")
	assert.Contains(t, built.SQL, "FROM DQ_METRICS")
	assert.Contains(t, built.SQL, "WHERE 1=1")
	assert.Contains(t, built.SQL, "UPPER(ASSET_ID) = 'PI_QUALYTICS.BANKING.CUSTOMER'")
	assert.Contains(t, built.SQL, "METRIC_TIME >= DATEADD(day, -7, CURRENT_TIMESTAMP())")
	assert.Contains(t, built.SQL, "GROUP BY DATE(METRIC_TIME)")
	assert.Contains(t, built.SQL, "LIMIT 100")
}

func TestBuildQuery_Deterministic(t *testing.T) {
	plan := trendPlan()
	plan.Filters = map[string]any{
		"metric_name": "completeness",
		"status":      "ACTIVE",
		"severity":    []any{"HIGH", "MEDIUM"},
	}

	first, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := BuildQuery(plan, testAsset)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL, "build must be byte-identical across calls")
	}
}

func TestBuildQuery_AggregationExcludesRawColumns(t *testing.T) {
	plan := trendPlan()
	plan.Columns = []string{"METRIC_NAME", "ASSET_ID"}

	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)

	selectClause := built.SQL[:strings.Index(built.SQL, " FROM ")]
	assert.NotContains(t, selectClause, "METRIC_NAME")
	assert.NotContains(t, selectClause, "ASSET_ID")
}

func TestBuildQuery_PlainColumnsFallback(t *testing.T) {
	plan := &models.ExecutionPlan{
		Tables:  []string{"DQ_METRICS"},
		Columns: []string{"METRIC_NAME", "METRIC_VALUE"},
	}
	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(built.SQL, "SELECT METRIC_NAME, METRIC_VALUE FROM"))

	plan.Columns = nil
	built, err = BuildQuery(plan, testAsset)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(built.SQL, "SELECT * FROM"))
}

func TestBuildQuery_LegacyTableAssetFilter(t *testing.T) {
	plan := &models.ExecutionPlan{Tables: []string{"DQ_CHECK_RESULTS"}}
	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)

	assert.Contains(t, built.SQL, "UPPER(DATABASE_NAME) = 'PI_QUALYTICS'")
	assert.Contains(t, built.SQL, "UPPER(SCHEMA_NAME) = 'BANKING'")
	assert.Contains(t, built.SQL, "UPPER(TABLE_NAME) = 'CUSTOMER'")
	assert.NotContains(t, built.SQL, "ASSET_ID")
}

func TestBuildQuery_UnknownTableGetsNoTimeFilter(t *testing.T) {
	plan := &models.ExecutionPlan{
		Tables:         []string{"CUSTOMER"},
		TimeWindowDays: intPtr(30),
	}
	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)

	// The builder never guesses a time column.
	assert.NotContains(t, built.SQL, "DATEADD")
}

func TestBuildQuery_FilterRendering(t *testing.T) {
	plan := &models.ExecutionPlan{
		Tables: []string{"DQ_METRICS"},
		Filters: map[string]any{
			"metric_name":      "completeness",
			"score":            float64(95),
			"severity":         []any{"HIGH", "MEDIUM"},
			"time_window_days": float64(7), // reserved, must be skipped
		},
	}
	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)

	assert.Contains(t, built.SQL, "UPPER(METRIC_NAME) = 'COMPLETENESS'")
	assert.Contains(t, built.SQL, "SCORE = 95")
	assert.Contains(t, built.SQL, "SEVERITY IN ('HIGH', 'MEDIUM')")
	assert.NotContains(t, built.SQL, "TIME_WINDOW_DAYS")
}

func TestBuildQuery_OrderByAndLimit(t *testing.T) {
	plan := &models.ExecutionPlan{
		Tables:  []string{"DQ_METRICS"},
		Columns: []string{"METRIC_VALUE"},
		OrderBy: []string{"METRIC_TIME DESC"},
		Limit:   intPtr(25),
	}
	built, err := BuildQuery(plan, testAsset)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "ORDER BY METRIC_TIME DESC")
	assert.Contains(t, built.SQL, "LIMIT 25")
}

func TestBuildQuery_SafetyGateRejectsInjectedFilterValues(t *testing.T) {
	payloads := []string{
		"x'; DROP TABLE DQ_METRICS--",
		"1 OR 1=1; DELETE FROM CUSTOMER",
		"val /* sneak */",
		"name' UNION SELECT PASSWORD FROM USERS--",
		"TRUNCATE ACCOUNT",
	}

	for _, payload := range payloads {
		plan := &models.ExecutionPlan{
			Tables:  []string{"DQ_METRICS"},
			Filters: map[string]any{"metric_name": payload},
		}
		_, err := BuildQuery(plan, testAsset)
		require.Error(t, err, "payload %q must be rejected", payload)
	}
}

func TestBuildQuery_OutputNeverContainsForbiddenTokens(t *testing.T) {
	plans := []*models.ExecutionPlan{
		trendPlan(),
		{Tables: []string{"DQ_CHECK_RESULTS"}, TimeWindowDays: intPtr(45)},
		{Tables: []string{"CUSTOMER"}, Columns: []string{"CREATED_DATE", "LAST_UPDATED"}},
		{Tables: []string{"DQ_METRICS", "DQ_ANOMALIES"}, Metrics: []string{"COUNT(*)"}},
	}

	for _, plan := range plans {
		built, err := BuildQuery(plan, testAsset)
		require.NoError(t, err)

		upper := strings.ToUpper(built.SQL)
		for _, verb := range []string{"DROP", "DELETE", "INSERT", "TRUNCATE", "ALTER"} {
			assert.NotContains(t, upper, verb)
		}
		assert.NotContains(t, upper, "--")
		assert.NotContains(t, upper, "/*")
	}
}

func TestBuildQuery_IdentifiersContainingVerbSubstringsPass(t *testing.T) {
	// CREATED_DATE and LAST_UPDATED embed CREATE/UPDATE as substrings; the
	// gate matches whole tokens only.
	plan := &models.ExecutionPlan{
		Tables:  []string{"CUSTOMER"},
		Columns: []string{"CREATED_DATE", "LAST_UPDATED"},
	}
	_, err := BuildQuery(plan, testAsset)
	assert.NoError(t, err)
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name     string
		plan     *models.ExecutionPlan
		expected models.QueryComplexity
	}{
		{
			name:     "single table no extras",
			plan:     &models.ExecutionPlan{Tables: []string{"DQ_METRICS"}},
			expected: models.ComplexityLow,
		},
		{
			name: "group by with medium window",
			plan: &models.ExecutionPlan{
				Tables:         []string{"DQ_METRICS"},
				GroupBy:        []string{"METRIC_NAME"},
				TimeWindowDays: intPtr(45),
			},
			expected: models.ComplexityMedium,
		},
		{
			name: "multi-table long window group by",
			plan: &models.ExecutionPlan{
				Tables:         []string{"DQ_METRICS", "DQ_ANOMALIES"},
				GroupBy:        []string{"METRIC_NAME"},
				TimeWindowDays: intPtr(90),
				Limit:          intPtr(800),
			},
			expected: models.ComplexityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := BuildQuery(tt.plan, testAsset)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, built.Complexity)
		})
	}
}

func TestCheckQuerySafety(t *testing.T) {
	assert.NoError(t, CheckQuerySafety("SELECT * FROM DQ_METRICS WHERE 1=1 LIMIT 100"))
	assert.Error(t, CheckQuerySafety("SELECT * FROM T; DROP TABLE T"))
	assert.Error(t, CheckQuerySafety("SELECT * FROM T -- comment"))
	assert.Error(t, CheckQuerySafety("SELECT /* hidden */ * FROM T"))
	assert.NoError(t, CheckQuerySafety("SELECT CREATED_DATE, LAST_UPDATED FROM CUSTOMER"))
}
