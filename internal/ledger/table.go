package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Table is an untyped ledger: a header row and the data rows below it.
// Every row has exactly len(Columns) cells; short rows are padded with blanks.
type Table struct {
	Source  string
	Columns []string
	Records [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Records)
}

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// Read parses an uploaded ledger. Workbooks are detected by their zip signature;
// everything else is read as comma-separated text.
func Read(source string, data []byte) (*Table, error) {
	var (
		table *Table
		err   error
	)
	if bytes.HasPrefix(data, zipMagic) {
		table, err = ReadXLSX(bytes.NewReader(data))
	} else {
		table, err = ReadCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	table.Source = source
	return table, nil
}

// ReadCSV reads a comma-separated ledger with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading input: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, malformed("input is not valid UTF-8", nil)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("no columns to parse from input", nil)
	}
	if err != nil {
		return nil, malformed("reading header", err)
	}

	table := &Table{Columns: normalizeHeader(header)}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("reading records", err)
		}
		row, err := fitRecord(record, len(table.Columns))
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, malformed(fmt.Sprintf("line %d", line), err)
		}
		table.Records = append(table.Records, row)
	}

	return table, nil
}

// ReadXLSX reads the first sheet of a workbook; the first non-empty row is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, malformed("opening workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformed("workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, malformed(fmt.Sprintf("reading sheet %q", sheets[0]), err)
	}

	var table *Table
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if table == nil {
			table = &Table{Columns: normalizeHeader(row)}
			continue
		}
		fitted, err := fitRecord(row, len(table.Columns))
		if err != nil {
			return nil, malformed(fmt.Sprintf("sheet %q row %d", sheets[0], i+1), err)
		}
		table.Records = append(table.Records, fitted)
	}
	if table == nil {
		return nil, malformed("no columns to parse from workbook", nil)
	}

	return table, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		out[i] = strings.TrimSpace(name)
	}
	return out
}

// fitRecord pads short rows with blanks and rejects rows wider than the header.
func fitRecord(record []string, width int) ([]string, error) {
	if len(record) > width {
		return nil, fmt.Errorf("expected %d fields, saw %d", width, len(record))
	}
	row := make([]string, width)
	copy(row, record)
	return row, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
