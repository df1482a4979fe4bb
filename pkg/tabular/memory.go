package tabular

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Client used by tests and as a scratch backend.
// Rows are stored per sheet; all methods are safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	grids map[string][][]string
}

// NewMemory returns an empty in-memory grid store.
func NewMemory() *Memory {
	return &Memory{grids: make(map[string][][]string)}
}

// Seed replaces the named grid with the given rows (header first).
func (m *Memory) Seed(sheet string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	m.grids[sheet] = cp
}

// Rows returns a copy of the named grid.
func (m *Memory) Rows(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.grids[sheet]
	cp := make([][]string, len(src))
	for i, r := range src {
		cp[i] = append([]string(nil), r...)
	}
	return cp
}

func (m *Memory) ReadRange(ctx context.Context, spec RangeSpec) ([][]string, error) {
	return m.Rows(spec.Sheet), nil
}

func (m *Memory) WriteCells(ctx context.Context, spec RangeSpec, rowNumber int, cells map[int]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.grids[spec.Sheet]
	if rowNumber < 1 || rowNumber > len(rows) {
		return fmt.Errorf("row %d out of range for sheet %s", rowNumber, spec.Sheet)
	}
	row := rows[rowNumber-1]
	for col, v := range cells {
		if col < 0 {
			return fmt.Errorf("negative column index %d", col)
		}
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = v
	}
	rows[rowNumber-1] = row
	return nil
}

func (m *Memory) AppendRow(ctx context.Context, spec RangeSpec, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[spec.Sheet] = append(m.grids[spec.Sheet], append([]string(nil), values...))
	return nil
}
