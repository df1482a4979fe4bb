// Package sqlitegrid is the default tabular-store backend: a SQLite
// database holding one table of JSON-encoded rows per named grid. It
// mirrors the shared-sheet semantics the reconciliation core assumes
// (ordered rows, header in row 1, exact cell-rectangle writes) while
// remaining editable out-of-band by other tools.
package sqlitegrid

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/opsdesk/sheetbridge/pkg/tabular"
)

// Store is a SQLite-backed tabular.Client.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the grid database at path.
func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing grid db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	// single writer; WAL keeps concurrent readers unblocked
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS grid_rows (
			sheet      TEXT    NOT NULL,
			row_number INTEGER NOT NULL,
			cells      TEXT    NOT NULL,
			PRIMARY KEY (sheet, row_number)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("grid schema init: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSheet seeds the header row of the named grid when the grid is
// empty. Existing grids are left untouched.
func (s *Store) EnsureSheet(ctx context.Context, sheet string, headers []string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grid_rows WHERE sheet = ?`, sheet).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.AppendRow(ctx, tabular.RangeSpec{Sheet: sheet}, headers)
}

// ReadRange returns all rows of the grid in row order, header first.
func (s *Store) ReadRange(ctx context.Context, spec tabular.RangeSpec) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM grid_rows WHERE sheet = ? ORDER BY row_number ASC`, spec.Sheet)
	if err != nil {
		return nil, fmt.Errorf("grid read %s: %w", spec.Sheet, err)
	}
	defer rows.Close()
	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("grid row decode %s: %w", spec.Sheet, err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// WriteCells patches individual cells of the 1-based rowNumber inside a
// transaction, extending the row when the target column lies past its
// current width.
func (s *Store) WriteCells(ctx context.Context, spec tabular.RangeSpec, rowNumber int, cells map[int]string) error {
	if rowNumber < 1 {
		return fmt.Errorf("row %d out of range", rowNumber)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT cells FROM grid_rows WHERE sheet = ? AND row_number = ?`,
		spec.Sheet, rowNumber).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("row %d not present in sheet %s", rowNumber, spec.Sheet)
	}
	if err != nil {
		return err
	}
	var row []string
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return fmt.Errorf("grid row decode %s: %w", spec.Sheet, err)
	}
	for col, v := range cells {
		if col < 0 {
			return fmt.Errorf("negative column index %d", col)
		}
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = v
	}
	nb, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE grid_rows SET cells = ? WHERE sheet = ? AND row_number = ?`,
		string(nb), spec.Sheet, rowNumber); err != nil {
		return fmt.Errorf("grid write %s row %d: %w", spec.Sheet, rowNumber, err)
	}
	return tx.Commit()
}

// AppendRow adds values as a new last row of the grid.
func (s *Store) AppendRow(ctx context.Context, spec tabular.RangeSpec, values []string) error {
	nb, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grid_rows (sheet, row_number, cells)
		 VALUES (?, COALESCE((SELECT MAX(row_number) FROM grid_rows WHERE sheet = ?), 0) + 1, ?)`,
		spec.Sheet, spec.Sheet, string(nb))
	if err != nil {
		return fmt.Errorf("grid append %s: %w", spec.Sheet, err)
	}
	return nil
}
