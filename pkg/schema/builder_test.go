package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

type fakeQuerier struct {
	lastSQL   string
	lastBinds []any
	result    *models.ResultSet
	err       error
}

func (f *fakeQuerier) Query(ctx context.Context, sqlText string, binds ...any) (*models.ResultSet, error) {
	f.lastSQL = sqlText
	f.lastBinds = binds
	return f.result, f.err
}

func TestBuild_PopulatesRegistry(t *testing.T) {
	q := &fakeQuerier{result: &models.ResultSet{
		Columns: []string{"TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "ORDINAL_POSITION"},
		Rows: [][]string{
			{"BANKING", "CUSTOMER", "CUSTOMER_ID", "TEXT", "NO", "1"},
			{"BANKING", "CUSTOMER", "EMAIL", "TEXT", "YES", "2"},
			{"DQ_METRICS", "DQ_METRICS", "ASSET_ID", "TEXT", "NO", "1"},
			{"DQ_METRICS", "DQ_METRICS", "METRIC_VALUE", "FLOAT", "YES", "2"},
		},
	}}

	b := NewBuilder(q, "pi_qualytics", []string{"banking"}, zap.NewNop())
	reg, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "PI_QUALYTICS", reg.Database)
	assert.Equal(t, 2, reg.TableCount())
	assert.Equal(t, []any{"BANKING", "DQ_METRICS"}, q.lastBinds)
	assert.Contains(t, q.lastSQL, "PI_QUALYTICS.INFORMATION_SCHEMA.COLUMNS")

	cols := reg.TableColumns("CUSTOMER")
	require.Len(t, cols, 2)
	assert.Equal(t, "CUSTOMER_ID", cols[0].Name)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
}

func TestBuild_AlwaysIncludesMetricsSchema(t *testing.T) {
	q := &fakeQuerier{result: &models.ResultSet{}}

	b := NewBuilder(q, "PI_QUALYTICS", []string{"BANKING", "DQ_METRICS"}, zap.NewNop())
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	// Duplicate metrics schema must not be bound twice.
	assert.Equal(t, []any{"BANKING", "DQ_METRICS"}, q.lastBinds)
}

func TestResolveTable_QualificationTolerance(t *testing.T) {
	reg := models.NewSchemaRegistry("PI_QUALYTICS")
	reg.AddColumn("DQ_METRICS", "DQ_METRICS", models.ColumnInfo{Name: "ASSET_ID", Ordinal: 1})

	for _, ref := range []string{"DQ_METRICS", "dq_metrics", "DQ_METRICS.DQ_METRICS", "pi_qualytics.dq_metrics.dq_metrics"} {
		name, ok := reg.ResolveTable(ref)
		assert.True(t, ok, "reference %q should resolve", ref)
		assert.Equal(t, "DQ_METRICS", name)
	}

	_, ok := reg.ResolveTable("DQ_FAKE_TABLE")
	assert.False(t, ok)
}

func TestPromptText(t *testing.T) {
	reg := models.NewSchemaRegistry("PI_QUALYTICS")
	reg.AddColumn("BANKING", "CUSTOMER", models.ColumnInfo{Name: "CUSTOMER_ID", DataType: "TEXT", Ordinal: 1})
	reg.AddColumn("BANKING", "CUSTOMER", models.ColumnInfo{Name: "EMAIL", DataType: "TEXT", Nullable: true, Ordinal: 2})

	text := PromptText(reg)
	assert.Contains(t, text, "SCHEMA BANKING:")
	assert.Contains(t, text, "TABLE CUSTOMER:")
	assert.Contains(t, text, "CUSTOMER_ID (TEXT, not null)")
	assert.Contains(t, text, "EMAIL (TEXT, nullable)")
}
