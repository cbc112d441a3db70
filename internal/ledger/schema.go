package ledger

import (
	"strings"

	"github.com/dvloznov/ledger-insights/internal/domain"
)

// Column names of the ledger header.
const (
	ColumnTransactionID = "transaction_id"
	ColumnCustomerID    = "customer_id"
	ColumnAmount        = "amount"
	ColumnTimestamp     = "timestamp"
)

// RequiredColumns must be present in every ledger; transaction_id is optional.
var RequiredColumns = []string{ColumnAmount, ColumnTimestamp, ColumnCustomerID}

// nullTokens are cell values treated as missing, matching common spreadsheet exports.
var nullTokens = map[string]bool{
	"":         true,
	"NA":       true,
	"N/A":      true,
	"n/a":      true,
	"#N/A":     true,
	"<NA>":     true,
	"NaN":      true,
	"nan":      true,
	"-NaN":     true,
	"-nan":     true,
	"NULL":     true,
	"null":     true,
	"None":     true,
	"#NA":      true,
	"#N/A N/A": true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
}

// RawRow is one untyped ledger row with the columns the cleaner cares about.
type RawRow struct {
	TransactionID domain.NullString
	CustomerID    domain.NullString
	Amount        domain.NullString
	Timestamp     domain.NullString
}

// Schema maps the known columns to their positions in a validated table.
type Schema struct {
	transactionID int
	customerID    int
	amount        int
	timestamp     int
}

// Validate checks that the table carries every required column and returns the column mapping.
// When a header name repeats, its first occurrence wins.
func Validate(t *Table) (*Schema, error) {
	index := make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	s := &Schema{
		customerID:    index[ColumnCustomerID],
		amount:        index[ColumnAmount],
		timestamp:     index[ColumnTimestamp],
		transactionID: -1,
	}
	if i, ok := index[ColumnTransactionID]; ok {
		s.transactionID = i
	}
	return s, nil
}

// HasTransactionID reports whether the ledger has a transaction_id column.
func (s *Schema) HasTransactionID() bool {
	return s.transactionID >= 0
}

// Row extracts the known columns of one record.
func (s *Schema) Row(record []string) RawRow {
	row := RawRow{
		CustomerID: cell(record, s.customerID),
		Amount:     cell(record, s.amount),
		Timestamp:  cell(record, s.timestamp),
	}
	if s.HasTransactionID() {
		row.TransactionID = cell(record, s.transactionID)
	}
	return row
}

// Rows extracts every record of the table in order.
func (s *Schema) Rows(t *Table) []RawRow {
	rows := make([]RawRow, len(t.Records))
	for i, record := range t.Records {
		rows[i] = s.Row(record)
	}
	return rows
}

func cell(record []string, i int) domain.NullString {
	if i < 0 || i >= len(record) {
		return domain.NullString{}
	}
	v := record[i]
	if nullTokens[strings.TrimSpace(v)] {
		return domain.NullString{}
	}
	return domain.NullString{StringVal: v, Valid: true}
}
