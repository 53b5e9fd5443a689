// Package schema builds the per-request registry of warehouse structure
// that grounds plan validation and the LLM prompt.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// MetricsSchema is the fixed schema holding the engine's own DQ tables.
// It is always unioned into the registry so the model sees both the
// business tables and the internal metrics tables at once.
const MetricsSchema = "DQ_METRICS"

// Querier is the read capability the builder needs from the warehouse.
type Querier interface {
	Query(ctx context.Context, sqlText string, binds ...any) (*models.ResultSet, error)
}

// Builder introspects the warehouse column catalog into a SchemaRegistry.
type Builder struct {
	db       Querier
	database string
	schemas  []string
	logger   *zap.Logger
}

// NewBuilder creates a registry builder for the given catalog and schemas.
// MetricsSchema is always included on top of the configured schemas.
func NewBuilder(db Querier, database string, schemas []string, logger *zap.Logger) *Builder {
	return &Builder{
		db:       db,
		database: strings.ToUpper(database),
		schemas:  schemas,
		logger:   logger.Named("schema"),
	}
}

// Build queries the catalog's column metadata and returns a fresh registry.
// No retry: a connection failure surfaces directly to the caller.
func (b *Builder) Build(ctx context.Context) (*models.SchemaRegistry, error) {
	schemas := b.schemaList()

	placeholders := make([]string, len(schemas))
	binds := make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = "?"
		binds[i] = s
	}

	query := fmt.Sprintf(
		`SELECT TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE, ORDINAL_POSITION
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA IN (%s)
ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`,
		b.database, strings.Join(placeholders, ", "))

	rs, err := b.db.Query(ctx, query, binds...)
	if err != nil {
		return nil, fmt.Errorf("introspect column catalog: %w", err)
	}

	registry := models.NewSchemaRegistry(b.database)
	for _, row := range rs.Rows {
		if len(row) < 6 {
			continue
		}
		ordinal, _ := strconv.Atoi(row[5])
		registry.AddColumn(row[0], row[1], models.ColumnInfo{
			Name:     row[2],
			DataType: row[3],
			Nullable: strings.EqualFold(row[4], "YES"),
			Ordinal:  ordinal,
		})
	}

	b.logger.Debug("registry built",
		zap.Int("schemas", len(registry.Schemas)),
		zap.Int("tables", registry.TableCount()))

	return registry, nil
}

// schemaList returns the configured schemas plus MetricsSchema, upper-cased
// and de-duplicated, in stable order.
func (b *Builder) schemaList() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, b.schemas...), MetricsSchema) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// PromptText renders a registry as the schema description handed to the
// model. Deterministic ordering keeps prompts stable across runs.
func PromptText(r *models.SchemaRegistry) string {
	var b strings.Builder

	for _, schemaName := range r.SchemaNames() {
		tables := r.Schemas[schemaName]

		tableNames := make([]string, 0, len(tables))
		for name := range tables {
			tableNames = append(tableNames, name)
		}
		sort.Strings(tableNames)

		fmt.Fprintf(&b, "SCHEMA %s:\n", schemaName)
		for _, tableName := range tableNames {
			fmt.Fprintf(&b, "  TABLE %s:\n", tableName)
			for _, col := range tables[tableName] {
				nullable := "not null"
				if col.Nullable {
					nullable = "nullable"
				}
				fmt.Fprintf(&b, "    - %s (%s, %s)\n", col.Name, col.DataType, nullable)
			}
		}
	}

	return b.String()
}
