package models

import (
	"sort"
	"strings"
)

// ColumnInfo describes a single column from the warehouse column catalog.
type ColumnInfo struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Ordinal  int    `json:"ordinal"`
}

// SchemaRegistry is an immutable snapshot of warehouse structure, built fresh
// for each pipeline run. Keys are upper-cased so lookups are case-insensitive.
// Shape: schema name -> table name -> columns ordered by ordinal position.
type SchemaRegistry struct {
	Database string                             `json:"database"`
	Schemas  map[string]map[string][]ColumnInfo `json:"schemas"`
}

// NewSchemaRegistry creates an empty registry for the given database.
func NewSchemaRegistry(database string) *SchemaRegistry {
	return &SchemaRegistry{
		Database: strings.ToUpper(database),
		Schemas:  make(map[string]map[string][]ColumnInfo),
	}
}

// AddColumn records a column under schema.table, upper-casing the keys.
// Columns are expected to arrive in ordinal order.
func (r *SchemaRegistry) AddColumn(schema, table string, col ColumnInfo) {
	schema = strings.ToUpper(schema)
	table = strings.ToUpper(table)

	tables, ok := r.Schemas[schema]
	if !ok {
		tables = make(map[string][]ColumnInfo)
		r.Schemas[schema] = tables
	}
	col.Name = strings.ToUpper(col.Name)
	tables[table] = append(tables[table], col)
}

// ResolveTable resolves a table reference against the registry. The reference
// may be bare (TABLE), schema-qualified (SCHEMA.TABLE) or fully qualified
// (DB.SCHEMA.TABLE); matching is case-insensitive. LLMs qualify names
// inconsistently, so a bare name matches any schema that contains it.
func (r *SchemaRegistry) ResolveTable(name string) (string, bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(name)), ".")
	table := parts[len(parts)-1]

	if len(parts) >= 2 {
		schema := parts[len(parts)-2]
		if tables, ok := r.Schemas[schema]; ok {
			if _, ok := tables[table]; ok {
				return table, true
			}
		}
	}

	for _, tables := range r.Schemas {
		if _, ok := tables[table]; ok {
			return table, true
		}
	}
	return "", false
}

// TableColumns returns the columns of the named table wherever it lives,
// or nil if the table is unknown.
func (r *SchemaRegistry) TableColumns(table string) []ColumnInfo {
	table = bareTableName(table)
	for _, tables := range r.Schemas {
		if cols, ok := tables[table]; ok {
			return cols
		}
	}
	return nil
}

// HasColumn reports whether any of the given tables contains the column.
func (r *SchemaRegistry) HasColumn(tables []string, column string) bool {
	column = strings.ToUpper(strings.TrimSpace(column))
	for _, t := range tables {
		for _, col := range r.TableColumns(t) {
			if col.Name == column {
				return true
			}
		}
	}
	return false
}

// TableCount returns the total number of tables across all schemas.
func (r *SchemaRegistry) TableCount() int {
	n := 0
	for _, tables := range r.Schemas {
		n += len(tables)
	}
	return n
}

// SchemaNames returns the registry's schema names, sorted.
func (r *SchemaRegistry) SchemaNames() []string {
	names := make([]string, 0, len(r.Schemas))
	for name := range r.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func bareTableName(name string) string {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(name)), ".")
	return parts[len(parts)-1]
}
