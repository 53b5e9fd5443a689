package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bankingRegistry() *SchemaRegistry {
	reg := NewSchemaRegistry("pi_qualytics")
	reg.AddColumn("banking", "customer", ColumnInfo{Name: "customer_id", Ordinal: 1})
	reg.AddColumn("banking", "customer", ColumnInfo{Name: "created_date", Ordinal: 2})
	reg.AddColumn("dq_metrics", "dq_metrics", ColumnInfo{Name: "metric_value", Ordinal: 1})
	return reg
}

func TestRegistry_KeysAreUpperCased(t *testing.T) {
	reg := bankingRegistry()

	assert.Equal(t, "PI_QUALYTICS", reg.Database)
	assert.Equal(t, []string{"BANKING", "DQ_METRICS"}, reg.SchemaNames())
	assert.Equal(t, 2, reg.TableCount())

	cols := reg.TableColumns("customer")
	assert.Len(t, cols, 2)
	assert.Equal(t, "CUSTOMER_ID", cols[0].Name)
}

func TestRegistry_ResolveTable(t *testing.T) {
	reg := bankingRegistry()

	tests := []struct {
		ref   string
		found bool
	}{
		{"CUSTOMER", true},
		{"customer", true},
		{"BANKING.CUSTOMER", true},
		{"PI_QUALYTICS.BANKING.CUSTOMER", true},
		{" customer ", true},
		{"ACCOUNT", false},
		{"BANKING.DQ_METRICS", true}, // wrong schema still resolves by bare name
		{"", false},
	}

	for _, tt := range tests {
		_, found := reg.ResolveTable(tt.ref)
		assert.Equal(t, tt.found, found, "ref %q", tt.ref)
	}
}

func TestRegistry_HasColumn(t *testing.T) {
	reg := bankingRegistry()

	assert.True(t, reg.HasColumn([]string{"CUSTOMER"}, "customer_id"))
	assert.True(t, reg.HasColumn([]string{"BANKING.CUSTOMER"}, "CREATED_DATE"))
	assert.True(t, reg.HasColumn([]string{"CUSTOMER", "DQ_METRICS"}, "METRIC_VALUE"))
	assert.False(t, reg.HasColumn([]string{"CUSTOMER"}, "METRIC_VALUE"))
	assert.False(t, reg.HasColumn(nil, "CUSTOMER_ID"))
}
