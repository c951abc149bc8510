// Package rowstore provides tabular storage for the catalog worksheets. A
// sheet is an ordered list of rows, a row an ordered list of string cells;
// row 1 is the header. The interface mirrors a spreadsheet range API so the
// handlers stay storage-agnostic.
package rowstore

import "errors"

// ErrSheetNotFound is returned when a named sheet has never been seeded.
var ErrSheetNotFound = errors.New("sheet not found")

// CellUpdate addresses one cell. Row is 1-based (row 1 is the header line),
// Col is 0-based.
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

// Store is the worksheet-shaped storage the handlers run against.
type Store interface {
	// Values returns every row of the sheet in order. Rows may have
	// differing lengths; trailing empty cells are not padded.
	Values(sheet string) ([][]string, error)

	// UpdateCell writes one cell, extending the row with empty cells if
	// col is past its current end.
	UpdateCell(sheet string, row, col int, value string) error

	// BatchUpdate applies the updates in order. Not atomic across
	// processes, but all updates of one call go through one transaction.
	BatchUpdate(sheet string, updates []CellUpdate) error

	// AppendRows adds rows after the current last row of the sheet.
	AppendRows(sheet string, rows [][]string) error

	// DeleteRows removes count rows starting at the 1-based row start and
	// shifts the rows below up.
	DeleteRows(sheet string, start, count int) error
}
