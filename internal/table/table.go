// =============================================================================
// Order/Invoice Reconciler - Shared Table Type
// =============================================================================
//
// This package contains the in-memory tabular representation shared by the
// readers (csvparser, xlsxparser), the profile transformations and the
// reconciliation engine. Keeping it in its own package avoids import cycles
// between the readers and the engine.
//
// A Table is fully materialized before any engine component runs. Cells are
// plain strings; a cell that is missing from a short row reads as "".
//
// =============================================================================

package table

import (
	"strings"
)

// Table is a header row plus data rows read from a spreadsheet or CSV export.
type Table struct {
	// Headers contains the column names, in file order.
	Headers []string

	// Rows contains the data rows. Rows may be shorter than Headers.
	Rows [][]string

	// Source is the file (and sheet, if any) the table was read from.
	// Used only for messages.
	Source string

	index map[string]int
}

// New builds a Table from headers and rows.
func New(headers []string, rows [][]string) *Table {
	t := &Table{Headers: headers, Rows: rows}
	t.buildIndex()
	return t
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		// First occurrence wins for duplicated headers.
		if _, exists := t.index[h]; !exists {
			t.index[h] = i
		}
	}
}

// Index returns the position of a column, or -1 when it does not exist.
// Column names are matched exactly first and then ignoring case and
// surrounding whitespace.
func (t *Table) Index(column string) int {
	if t.index == nil {
		t.buildIndex()
	}
	if i, ok := t.index[column]; ok {
		return i
	}
	want := strings.ToLower(strings.TrimSpace(column))
	for i, h := range t.Headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// Has reports whether the table has the named column.
func (t *Table) Has(column string) bool {
	return column != "" && t.Index(column) >= 0
}

// Cell returns the value at (row, column index), or "" if the row is short.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// IsRowEmpty checks if a row contains only empty cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
