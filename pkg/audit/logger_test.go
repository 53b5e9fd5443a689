package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

type fakeStore struct {
	execCalls  []string
	execErrs   []error
	queryRows  [][]string
	queryErr   error
	queryCalls []string
}

func (f *fakeStore) Exec(_ context.Context, sqlText string, _ ...any) error {
	f.execCalls = append(f.execCalls, sqlText)
	if len(f.execErrs) > 0 {
		err := f.execErrs[0]
		f.execErrs = f.execErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, sqlText string, _ ...any) (*models.ResultSet, error) {
	f.queryCalls = append(f.queryCalls, sqlText)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &models.ResultSet{
		Columns:  []string{"STATUS", "ERROR_MESSAGE", "TOTAL_LATENCY_MS"},
		Rows:     f.queryRows,
		RowCount: len(f.queryRows),
	}, nil
}

func sampleRecord() *models.AuditRecord {
	return &models.AuditRecord{
		ExecutionID: "exec-1",
		Question:    "how complete is the customer table?",
		AssetID:     "PI_QUALYTICS.BANKING.CUSTOMER",
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Status:      models.StatusSuccess,
		RowCount:    12,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestLog_WritesOneInsert(t *testing.T) {
	store := &fakeStore{}
	NewLogger(store, zap.NewNop()).Log(context.Background(), sampleRecord())

	require.Len(t, store.execCalls, 1)
	assert.Contains(t, store.execCalls[0], "INSERT INTO DQ_METRICS.DQ_AI_AUDIT_LOG")
}

func TestLog_CreatesTableOnMissingTableError(t *testing.T) {
	store := &fakeStore{
		execErrs: []error{errors.New("SQL compilation error: Object 'DQ_AI_AUDIT_LOG' does not exist")},
	}
	NewLogger(store, zap.NewNop()).Log(context.Background(), sampleRecord())

	// insert, create table, retried insert
	require.Len(t, store.execCalls, 3)
	assert.Contains(t, store.execCalls[1], "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, store.execCalls[2], "INSERT INTO")
}

func TestLog_NonTableErrorsAreSwallowed(t *testing.T) {
	store := &fakeStore{
		execErrs: []error{errors.New("network unreachable")},
	}
	// Must not panic or retry; audit is best effort.
	NewLogger(store, zap.NewNop()).Log(context.Background(), sampleRecord())
	assert.Len(t, store.execCalls, 1)
}

func TestStats_Aggregates(t *testing.T) {
	store := &fakeStore{
		queryRows: [][]string{
			{"success", "", "1200"},
			{"success", "", "800"},
			{"sql_error", "warehouse query failed: timeout", "400"},
			{"validation_error", "Table not found in schema: DQ_FAKE", "150"},
			{"sql_error", "warehouse query failed: timeout", "300"},
		},
	}

	stats, err := NewLogger(store, zap.NewNop()).Stats(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, 5, stats.TotalRuns)
	assert.InDelta(t, 0.4, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 570.0, stats.AvgLatencyMS, 1e-9)
	assert.Equal(t, 2, stats.StatusCounts["success"])
	assert.Equal(t, 2, stats.StatusCounts["sql_error"])

	require.NotEmpty(t, stats.TopErrors)
	assert.Equal(t, "warehouse query failed: timeout", stats.TopErrors[0].Message)
	assert.Equal(t, 2, stats.TopErrors[0].Count)

	require.Len(t, store.queryCalls, 1)
	assert.True(t, strings.Contains(store.queryCalls[0], "DATEADD(day, -7"))
}

func TestStats_MissingTableReturnsEmpty(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("Object 'DQ_AI_AUDIT_LOG' does not exist or not authorized")}

	stats, err := NewLogger(store, zap.NewNop()).Stats(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Equal(t, 30, stats.Days)
}

func TestStats_DefaultsDays(t *testing.T) {
	store := &fakeStore{}
	stats, err := NewLogger(store, zap.NewNop()).Stats(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
}
