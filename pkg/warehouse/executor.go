package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// Executor runs queries against the warehouse and renders results into the
// string-typed ResultSet the pipeline works with.
type Executor struct {
	manager      *Manager
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewExecutor creates an executor bound to a connection manager. Every query
// is bounded by queryTimeout regardless of the caller's context.
func NewExecutor(manager *Manager, queryTimeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		manager:      manager,
		queryTimeout: queryTimeout,
		logger:       logger.Named("executor"),
	}
}

// Query executes sqlText and materializes all rows as strings. NULLs render
// as empty strings; the interpretation prompt does not distinguish NULL from
// empty and the audit log never needs to.
func (e *Executor) Query(ctx context.Context, sqlText string, binds ...any) (*models.ResultSet, error) {
	db, err := e.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(queryCtx, sqlText, binds...)
	if err != nil {
		return nil, fmt.Errorf("warehouse query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &models.ResultSet{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}
	result.RowCount = len(result.Rows)

	e.logger.Debug("query executed",
		zap.Int("rows", result.RowCount),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Exec runs a statement that returns no rows, such as audit inserts.
func (e *Executor) Exec(ctx context.Context, sqlText string, binds ...any) error {
	db, err := e.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	if _, err := db.ExecContext(execCtx, sqlText, binds...); err != nil {
		return fmt.Errorf("warehouse exec failed: %w", err)
	}
	return nil
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case sql.RawBytes:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
