package models

// RecordSnapshot is a point-in-time read of one row in the tabular
// store. Snapshots are read fresh on every reconciliation attempt and
// never cached across attempts; the store is externally mutable.
type RecordSnapshot struct {
	// RowNumber is the 1-based position in the grid; the header row is
	// row 1, so the first data row is 2.
	RowNumber int `json:"row_number"`
	// Headers is the raw header row as read.
	Headers []string `json:"headers"`
	// Row holds the cell values for the located record, index-aligned
	// with Headers.
	Row []string `json:"row"`
	// FieldToColumn maps normalized field names to 0-based column
	// indices, derived from the header row so reconciliation survives
	// reordered columns.
	FieldToColumn map[string]int `json:"field_to_column"`
}

// Cell returns the snapshot value at col, tolerating ragged rows.
func (s RecordSnapshot) Cell(col int) string {
	if col < 0 || col >= len(s.Row) {
		return ""
	}
	return s.Row[col]
}

// ChangeSet is the minimal safe partial update computed by the
// reconciler: column-indexed values for the store write and the same
// values keyed by field name for the audit trail. Derived per attempt,
// never persisted on its own.
type ChangeSet struct {
	Columns map[int]string    `json:"columns"`
	Fields  map[string]string `json:"fields"`
}

// Empty reports whether the change set carries no cell writes.
func (c ChangeSet) Empty() bool { return len(c.Columns) == 0 }
