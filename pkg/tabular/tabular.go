// Package tabular defines the client surface of the external tabular
// store: a grid of rows where row 1 is the header row and data rows
// follow in order. The store is shared and externally mutable; callers
// must treat every read as instantly stale.
package tabular

import "context"

// RangeSpec names the grid (sheet/tab) an operation targets.
type RangeSpec struct {
	Sheet string
}

// Client is the minimal tabular-store contract the reconciliation core
// relies on: a full range read returns the header row plus data rows in
// order, and a cell write targets an exact row/column rectangle.
type Client interface {
	// ReadRange returns all rows of the named grid, header first. An
	// empty grid yields an empty slice, not an error.
	ReadRange(ctx context.Context, spec RangeSpec) ([][]string, error)
	// WriteCells updates individual cells of the 1-based rowNumber;
	// cells maps 0-based column index to the new value. Columns absent
	// from the map are untouched.
	WriteCells(ctx context.Context, spec RangeSpec, rowNumber int, cells map[int]string) error
	// AppendRow adds values as a new last row.
	AppendRow(ctx context.Context, spec RangeSpec, values []string) error
}
