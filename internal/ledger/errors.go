package ledger

import (
	"fmt"
	"strings"
)

// MissingColumnError is returned when a required column is absent from the ledger header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// MalformedInputError is returned when the uploaded bytes cannot be read as a table.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
	}
	return "malformed input: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

func malformed(reason string, err error) error {
	return &MalformedInputError{Reason: reason, Err: err}
}
