package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-insights/internal/ledger"
	"google.golang.org/api/iterator"
)

// SourcePrefix marks dataset sources read from BigQuery, e.g. "bq://project.sales.transactions".
const SourcePrefix = "bq://"

// timestampLayout keeps the UTC offset so the cleaner sees the same wall clock BigQuery stores.
const timestampLayout = "2006-01-02 15:04:05Z07:00"

var tableRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_]+){1,2}$`)

// rowIterator is the part of *bigquery.RowIterator the reader needs.
type rowIterator interface {
	Next(dst interface{}) error
}

// LedgerReader loads a ledger table from BigQuery as an untyped ledger.Table,
// so warehouse rows go through the same cleaning rules as uploaded files.
type LedgerReader struct {
	client *bigquery.Client
}

// NewLedgerReader creates a reader billed to projectID.
func NewLedgerReader(ctx context.Context, projectID string) (*LedgerReader, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerReader: bigquery client: %w", err)
	}
	return &LedgerReader{client: client}, nil
}

// NewLedgerReaderWithClient creates a reader on an existing client.
func NewLedgerReaderWithClient(client *bigquery.Client) *LedgerReader {
	return &LedgerReader{client: client}
}

// Close releases the BigQuery client.
func (r *LedgerReader) Close() error {
	return r.client.Close()
}

// ReadTable reads every row of tableRef ("dataset.table" or "project.dataset.table").
func (r *LedgerReader) ReadTable(ctx context.Context, tableRef string) (*ledger.Table, error) {
	if !ValidTableRef(tableRef) {
		return nil, fmt.Errorf("ReadTable: invalid table reference %q", tableRef)
	}

	q := r.client.Query(fmt.Sprintf("SELECT * FROM `%s`", tableRef))
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadTable: query %s: %w", tableRef, err)
	}

	return collectTable(SourcePrefix+tableRef, it, func() bigquery.Schema { return it.Schema })
}

// ValidTableRef reports whether ref is a plain dataset.table or project.dataset.table name.
func ValidTableRef(ref string) bool {
	return tableRefPattern.MatchString(ref)
}

// collectTable drains it into a table. The schema is only known after the first Next call.
func collectTable(source string, it rowIterator, schema func() bigquery.Schema) (*ledger.Table, error) {
	table := &ledger.Table{Source: source}

	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("collectTable: reading rows: %w", err)
		}

		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatValue(v)
		}
		table.Records = append(table.Records, record)
	}

	for _, field := range schema() {
		table.Columns = append(table.Columns, field.Name)
	}
	return table, nil
}

// formatValue renders a BigQuery cell the way it would appear in a CSV export. NULL becomes
// an empty cell.
func formatValue(v bigquery.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case *big.Rat:
		return val.FloatString(9)
	case time.Time:
		return val.Format(timestampLayout)
	case civil.DateTime:
		return val.String()
	case civil.Date:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
