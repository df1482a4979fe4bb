// Package locate finds the tabular-store row a work identifier refers
// to and snapshots it together with a header-derived column map.
package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
	"github.com/opsdesk/sheetbridge/pkg/tabular"
)

// ErrNotFound is the typed not-found outcome: the identifier has no row
// in the store. Callers treat it as normal control flow, not a failure.
var ErrNotFound = errors.New("record not found")

// NormalizeField canonicalizes a header cell or proposed field name:
// trimmed, lowercased, inner whitespace collapsed to underscores. This
// lets extraction output like "job_status" address a "Job Status"
// header regardless of column position.
func NormalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// HeaderMap derives the field→column-index map from a header row.
// Duplicate headers keep the first occurrence.
func HeaderMap(headers []string) map[string]int {
	m := make(map[string]int, len(headers))
	for i, h := range headers {
		k := NormalizeField(h)
		if k == "" {
			continue
		}
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}

// Locate reads the full grid once and scans data rows top to bottom for
// the first row whose identifier column equals identifier. Ambiguity is
// a policy choice: a later row with the same identifier is warned about
// and never returned. Read errors propagate; a fabricated NotFound is
// never synthesized for them.
func Locate(ctx context.Context, c tabular.Client, spec tabular.RangeSpec, idColumn, identifier string) (models.RecordSnapshot, error) {
	return locate(ctx, c, spec, idColumn, identifier, 0)
}

// LocateWithHint behaves like Locate but first probes the hinted
// 1-based row number from the same fresh read, skipping the scan when
// the hint still matches. Hints are an optimization only; the returned
// snapshot is always built from the current read.
func LocateWithHint(ctx context.Context, c tabular.Client, spec tabular.RangeSpec, idColumn, identifier string, hint int) (models.RecordSnapshot, error) {
	return locate(ctx, c, spec, idColumn, identifier, hint)
}

func locate(ctx context.Context, c tabular.Client, spec tabular.RangeSpec, idColumn, identifier string, hint int) (models.RecordSnapshot, error) {
	var snap models.RecordSnapshot
	if identifier == "" {
		return snap, ErrNotFound
	}
	rows, err := c.ReadRange(ctx, spec)
	if err != nil {
		return snap, fmt.Errorf("tabular read failed: %w", err)
	}
	if len(rows) == 0 {
		return snap, ErrNotFound
	}
	headers := rows[0]
	cols := HeaderMap(headers)
	idCol, ok := cols[NormalizeField(idColumn)]
	if !ok {
		return snap, fmt.Errorf("identifier column %q not present in header row", idColumn)
	}

	build := func(rowIdx int) models.RecordSnapshot {
		return models.RecordSnapshot{
			RowNumber:     rowIdx + 1,
			Headers:       append([]string(nil), headers...),
			Row:           append([]string(nil), rows[rowIdx]...),
			FieldToColumn: cols,
		}
	}
	match := func(rowIdx int) bool {
		row := rows[rowIdx]
		return idCol < len(row) && strings.TrimSpace(row[idCol]) == identifier
	}

	if hint >= 2 && hint <= len(rows) && match(hint-1) {
		return build(hint - 1), nil
	}

	found := -1
	for i := 1; i < len(rows); i++ {
		if !match(i) {
			continue
		}
		if found < 0 {
			found = i
			continue
		}
		// first match wins; surface the ambiguity without failing
		logger.Warn("record_duplicate_identifier",
			"identifier", identifier, "row", found+1, "duplicate_row", i+1)
		break
	}
	if found < 0 {
		return snap, ErrNotFound
	}
	return build(found), nil
}
