// Package audit persists one record per pipeline run to the warehouse and
// serves aggregate statistics over the history.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// auditTable lives in the metrics schema next to the DQ tables it describes
// runs over.
const auditTable = "DQ_METRICS.DQ_AI_AUDIT_LOG"

const createTableDDL = `CREATE TABLE IF NOT EXISTS ` + auditTable + ` (
	EXECUTION_ID VARCHAR(64),
	QUESTION VARCHAR(4000),
	ASSET_ID VARCHAR(512),
	PROVIDER VARCHAR(64),
	MODEL VARCHAR(128),
	PLAN_JSON VARCHAR(16384),
	VALIDATION_ERROR VARCHAR(4000),
	SQL_TEXT VARCHAR(16384),
	STATUS VARCHAR(32),
	ERROR_MESSAGE VARCHAR(4000),
	ROW_COUNT NUMBER,
	PLAN_LATENCY_MS NUMBER,
	SQL_LATENCY_MS NUMBER,
	INTERPRET_LATENCY_MS NUMBER,
	TOTAL_LATENCY_MS NUMBER,
	CREATED_AT TIMESTAMP_TZ
)`

const insertSQL = `INSERT INTO ` + auditTable + ` (
	EXECUTION_ID, QUESTION, ASSET_ID, PROVIDER, MODEL, PLAN_JSON,
	VALIDATION_ERROR, SQL_TEXT, STATUS, ERROR_MESSAGE, ROW_COUNT,
	PLAN_LATENCY_MS, SQL_LATENCY_MS, INTERPRET_LATENCY_MS, TOTAL_LATENCY_MS,
	CREATED_AT
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Store is the warehouse surface the audit logger needs.
type Store interface {
	Query(ctx context.Context, sqlText string, binds ...any) (*models.ResultSet, error)
	Exec(ctx context.Context, sqlText string, binds ...any) error
}

// Logger writes audit records. Audit failures never fail a pipeline run;
// they are logged and dropped.
type Logger struct {
	store  Store
	logger *zap.Logger
}

// NewLogger creates an audit logger backed by the given store.
func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger.Named("audit")}
}

// Log persists one audit record, best effort. On a missing-table error it
// creates the audit table and retries the insert once.
func (l *Logger) Log(ctx context.Context, rec *models.AuditRecord) {
	err := l.insert(ctx, rec)
	if err == nil {
		return
	}

	if isMissingTable(err) {
		l.logger.Info("audit table missing, creating", zap.String("table", auditTable))
		if ddlErr := l.store.Exec(ctx, createTableDDL); ddlErr != nil {
			l.logger.Error("failed to create audit table", zap.Error(ddlErr))
			return
		}
		if err = l.insert(ctx, rec); err == nil {
			return
		}
	}

	l.logger.Error("failed to write audit record",
		zap.String("execution_id", rec.ExecutionID),
		zap.String("status", string(rec.Status)),
		zap.Error(err))
}

func (l *Logger) insert(ctx context.Context, rec *models.AuditRecord) error {
	return l.store.Exec(ctx, insertSQL,
		rec.ExecutionID,
		rec.Question,
		rec.AssetID,
		rec.Provider,
		rec.Model,
		rec.PlanJSON,
		rec.ValidationError,
		rec.SQLText,
		string(rec.Status),
		rec.ErrorMessage,
		rec.RowCount,
		rec.PlanLatencyMS,
		rec.SQLLatencyMS,
		rec.InterpretLatencyMS,
		rec.TotalLatencyMS,
		rec.CreatedAt,
	)
}

// missingTablePatterns match the Snowflake errors raised when the audit
// table has not been created yet.
var missingTablePatterns = []string{
	"does not exist",
	"not found",
	"unknown table",
	"not authorized",
}

func isMissingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range missingTablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Stats aggregates audit history over the trailing N days. Aggregation
// happens in Go over one scan so a malformed row degrades to a skipped row
// instead of a failed dashboard.
func (l *Logger) Stats(ctx context.Context, days int) (*models.AuditStats, error) {
	if days < 1 {
		days = 7
	}

	query := fmt.Sprintf(
		"SELECT STATUS, ERROR_MESSAGE, TOTAL_LATENCY_MS FROM %s WHERE CREATED_AT >= DATEADD(day, -%d, CURRENT_TIMESTAMP())",
		auditTable, days)

	result, err := l.store.Query(ctx, query)
	if err != nil {
		if isMissingTable(err) {
			return &models.AuditStats{Days: days, StatusCounts: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}

	stats := &models.AuditStats{
		Days:         days,
		StatusCounts: map[string]int{},
	}

	var latencySum float64
	var latencyCount int
	errorCounts := map[string]int{}

	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		status, errMsg, latency := row[0], row[1], row[2]

		stats.TotalRuns++
		stats.StatusCounts[status]++
		if errMsg != "" {
			errorCounts[errMsg]++
		}
		if ms, err := strconv.ParseFloat(latency, 64); err == nil {
			latencySum += ms
			latencyCount++
		}
	}

	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.StatusCounts[string(models.StatusSuccess)]) / float64(stats.TotalRuns)
	}
	if latencyCount > 0 {
		stats.AvgLatencyMS = latencySum / float64(latencyCount)
	}
	stats.TopErrors = topErrors(errorCounts, 10)

	return stats, nil
}

func topErrors(counts map[string]int, limit int) []models.ErrorCount {
	out := make([]models.ErrorCount, 0, len(counts))
	for msg, n := range counts {
		out = append(out, models.ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
