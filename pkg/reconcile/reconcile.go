// Package reconcile computes the minimal safe partial update for a
// located record: merge append-style fields, drop unknown or absent
// proposals, never touch unmentioned columns. The reconciler is pure;
// committing the write and the audit entry are the caller's two
// independent follow-up operations.
package reconcile

import (
	"fmt"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/locate"
	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
)

// AppendSeparator joins the previous cell value and appended text for
// append-style fields.
const AppendSeparator = " | "

// Stamp column names. Both are stamped into every change set; when the
// sheet lacks the column the stamp stays audit-only (Fields) with a
// warning, since there is no column index to write to.
const (
	FieldLastModifiedBy = "last_modified_by"
	FieldLastModifiedAt = "last_modified_at"
)

// Reconcile turns proposed field changes plus a current snapshot into a
// ChangeSet. Rules:
//
//  1. only fields present in the snapshot's header map are eligible;
//     unknown names are dropped with a warning
//  2. append-style fields concatenate previous cell + separator + new
//     text; all other fields overwrite
//  3. a nil proposed value is a no-op, it must not null out a cell
//  4. the last-modified by/at pair is always stamped with actor and now
func Reconcile(snap models.RecordSnapshot, proposed map[string]any, appendFields []string, actor string, now time.Time) models.ChangeSet {
	cs := models.ChangeSet{
		Columns: make(map[int]string),
		Fields:  make(map[string]string),
	}

	appendSet := make(map[string]struct{}, len(appendFields))
	for _, f := range appendFields {
		appendSet[locate.NormalizeField(f)] = struct{}{}
	}

	for name, raw := range proposed {
		if raw == nil {
			continue
		}
		field := locate.NormalizeField(name)
		col, ok := snap.FieldToColumn[field]
		if !ok {
			logger.Warn("reconcile_unknown_field_dropped", "field", name)
			continue
		}
		val := stringify(raw)
		if _, isAppend := appendSet[field]; isAppend {
			if prev := snap.Cell(col); prev != "" {
				val = prev + AppendSeparator + val
			}
		}
		cs.Columns[col] = val
		cs.Fields[field] = val
	}

	stamp(snap, &cs, FieldLastModifiedBy, actor)
	stamp(snap, &cs, FieldLastModifiedAt, now.UTC().Format(time.RFC3339))
	return cs
}

func stamp(snap models.RecordSnapshot, cs *models.ChangeSet, field, value string) {
	cs.Fields[field] = value
	if col, ok := snap.FieldToColumn[field]; ok {
		cs.Columns[col] = value
		return
	}
	logger.Warn("reconcile_stamp_column_missing", "field", field)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing fraction
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
