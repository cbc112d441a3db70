package ledger

import (
	"errors"
	"testing"

	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		missing []string
	}{
		{name: "all required missing", columns: []string{"transaction_id"}, missing: []string{"amount", "timestamp", "customer_id"}},
		{name: "amount missing", columns: []string{"customer_id", "timestamp"}, missing: []string{"amount"}},
		{name: "case sensitive", columns: []string{"Amount", "timestamp", "customer_id"}, missing: []string{"amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(&Table{Columns: tt.columns})
			require.Error(t, err)

			var missingErr *MissingColumnError
			require.True(t, errors.As(err, &missingErr))
			assert.Equal(t, tt.missing, missingErr.Columns)
		})
	}
}

func TestValidate_OptionalTransactionID(t *testing.T) {
	table := &Table{
		Columns: []string{"timestamp", "amount", "customer_id"},
		Records: [][]string{{"2025-01-01", "5", "c1"}},
	}

	schema, err := Validate(table)
	require.NoError(t, err)
	assert.False(t, schema.HasTransactionID())

	rows := schema.Rows(table)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].TransactionID.Valid)
	assert.Equal(t, domain.NullString{StringVal: "c1", Valid: true}, rows[0].CustomerID)
	assert.Equal(t, domain.NullString{StringVal: "5", Valid: true}, rows[0].Amount)
}

func TestValidate_DuplicateHeaderFirstWins(t *testing.T) {
	table := &Table{
		Columns: []string{"customer_id", "amount", "timestamp", "amount"},
		Records: [][]string{{"c1", "5", "2025-01-01", "999"}},
	}

	schema, err := Validate(table)
	require.NoError(t, err)
	assert.Equal(t, "5", schema.Rows(table)[0].Amount.StringVal)
}

func TestSchemaRow_NullTokens(t *testing.T) {
	table := &Table{Columns: []string{"transaction_id", "customer_id", "amount", "timestamp"}}
	schema, err := Validate(table)
	require.NoError(t, err)

	tests := []struct {
		value string
		valid bool
	}{
		{value: "", valid: false},
		{value: "   ", valid: false},
		{value: "NA", valid: false},
		{value: "N/A", valid: false},
		{value: "null", valid: false},
		{value: "NaN", valid: false},
		{value: "None", valid: false},
		{value: "#N/A N/A", valid: false},
		{value: "-1.#QNAN", valid: false},
		{value: "1.#IND", valid: false},
		{value: "none", valid: true},
		{value: " 12.50 ", valid: true},
		{value: "0", valid: true},
		{value: "invalid_price", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			row := schema.Row([]string{"t1", "c1", tt.value, "2025-01-01"})
			assert.Equal(t, tt.valid, row.Amount.Valid)
			if tt.valid {
				assert.Equal(t, tt.value, row.Amount.StringVal)
			}
		})
	}
}
