package domain

import (
	"time"
)

// NullString is a string cell that may be absent.
type NullString struct {
	StringVal string
	Valid     bool
}

// Transaction represents one row of a ledger that survived cleaning.
// Every Transaction has Amount > 0 and a non-zero Timestamp.
type Transaction struct {
	TransactionID NullString // from "transaction_id"; invalid when the column or the cell is missing
	CustomerID    string     // from "customer_id"; empty when the cell is missing
	Amount        float64    // from "amount"
	Timestamp     time.Time  // from "timestamp", wall clock as written in the ledger
}

// CleaningSummary describes how many rows the cleaner removed from one upload.
type CleaningSummary struct {
	InitialRecords int `json:"initial_records"`
	FinalRecords   int `json:"final_records"`
	RecordsRemoved int `json:"records_removed"`
}

// NewCleaningSummary builds a summary from the row counts before and after cleaning.
func NewCleaningSummary(initial, final int) CleaningSummary {
	return CleaningSummary{
		InitialRecords: initial,
		FinalRecords:   final,
		RecordsRemoved: initial - final,
	}
}

// CleanedDataset is the result of cleaning one uploaded ledger.
// It is never modified after the cleaner returns it; a new upload replaces it wholesale.
type CleanedDataset struct {
	ID        string
	Source    string
	CleanedAt time.Time
	Summary   CleaningSummary

	rows []Transaction
}

// NewCleanedDataset wraps cleaned rows. The slice is owned by the dataset from here on.
func NewCleanedDataset(id, source string, cleanedAt time.Time, rows []Transaction, summary CleaningSummary) *CleanedDataset {
	return &CleanedDataset{
		ID:        id,
		Source:    source,
		CleanedAt: cleanedAt,
		Summary:   summary,
		rows:      rows,
	}
}

// Len returns the number of cleaned rows.
func (d *CleanedDataset) Len() int {
	return len(d.rows)
}

// Rows returns a copy of the cleaned rows in ledger order.
func (d *CleanedDataset) Rows() []Transaction {
	out := make([]Transaction, len(d.rows))
	copy(out, d.rows)
	return out
}

// Each calls fn for every row in ledger order without copying the dataset.
func (d *CleanedDataset) Each(fn func(tx Transaction)) {
	for _, tx := range d.rows {
		fn(tx)
	}
}
