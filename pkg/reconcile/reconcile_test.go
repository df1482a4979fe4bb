package reconcile

import (
	"testing"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/locate"
	"github.com/opsdesk/sheetbridge/pkg/models"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func snapshot() models.RecordSnapshot {
	headers := []string{"Work ID", "Job Status", "Notes", "Last Modified By", "Last Modified At"}
	return models.RecordSnapshot{
		RowNumber:     7,
		Headers:       headers,
		Row:           []string{"WO-12345", "open", "scheduled", "", ""},
		FieldToColumn: locate.HeaderMap(headers),
	}
}

func TestReconcileOverwrite(t *testing.T) {
	cs := Reconcile(snapshot(), map[string]any{"job_status": "done"}, nil, "dana", testNow)
	if got := cs.Columns[1]; got != "done" {
		t.Fatalf("job_status column = %q; want done", got)
	}
	if got := cs.Fields["job_status"]; got != "done" {
		t.Fatalf("job_status field = %q; want done", got)
	}
}

// Overwrites converge: applying the same proposal to the resulting row
// yields the same value again.
func TestReconcileOverwriteIdempotent(t *testing.T) {
	snap := snapshot()
	proposed := map[string]any{"job_status": "done"}
	first := Reconcile(snap, proposed, nil, "dana", testNow)
	snap.Row[1] = first.Columns[1]
	second := Reconcile(snap, proposed, nil, "dana", testNow)
	if second.Columns[1] != first.Columns[1] {
		t.Fatalf("overwrite diverged: %q then %q", first.Columns[1], second.Columns[1])
	}
}

// Append fields are deliberately not idempotent: every application adds
// a segment.
func TestReconcileAppendAccumulates(t *testing.T) {
	snap := snapshot()
	proposed := map[string]any{"notes": "called customer"}
	appendFields := []string{"notes"}

	first := Reconcile(snap, proposed, appendFields, "dana", testNow)
	if want := "scheduled | called customer"; first.Columns[2] != want {
		t.Fatalf("first append = %q; want %q", first.Columns[2], want)
	}
	snap.Row[2] = first.Columns[2]
	second := Reconcile(snap, proposed, appendFields, "dana", testNow)
	if want := "scheduled | called customer | called customer"; second.Columns[2] != want {
		t.Fatalf("second append = %q; want %q", second.Columns[2], want)
	}
}

func TestReconcileAppendIntoEmptyCell(t *testing.T) {
	snap := snapshot()
	snap.Row[2] = ""
	cs := Reconcile(snap, map[string]any{"notes": "first note"}, []string{"notes"}, "dana", testNow)
	if got := cs.Columns[2]; got != "first note" {
		t.Fatalf("append into empty cell = %q; want no separator prefix", got)
	}
}

func TestReconcileUnknownFieldDropped(t *testing.T) {
	cs := Reconcile(snapshot(), map[string]any{"no_such_field": "x"}, nil, "dana", testNow)
	for col, v := range cs.Columns {
		if v == "x" {
			t.Fatalf("unknown field leaked into column %d", col)
		}
	}
	if _, ok := cs.Fields["no_such_field"]; ok {
		t.Fatalf("unknown field leaked into field map")
	}
}

func TestReconcileNilValueIsNoOp(t *testing.T) {
	cs := Reconcile(snapshot(), map[string]any{"job_status": nil}, nil, "dana", testNow)
	if _, ok := cs.Columns[1]; ok {
		t.Fatalf("nil proposal must not touch its column")
	}
	if _, ok := cs.Fields["job_status"]; ok {
		t.Fatalf("nil proposal must not enter the field map")
	}
}

// Columns the proposal never mentions must be absent from the change
// set entirely; the writer patches only what is present.
func TestReconcileUntouchedColumnsAbsent(t *testing.T) {
	cs := Reconcile(snapshot(), map[string]any{"job_status": "done"}, nil, "dana", testNow)
	if _, ok := cs.Columns[0]; ok {
		t.Fatalf("identifier column must stay untouched")
	}
	if _, ok := cs.Columns[2]; ok {
		t.Fatalf("notes column must stay untouched")
	}
	// job_status + by + at
	if len(cs.Columns) != 3 {
		t.Fatalf("expected exactly 3 column writes; got %d: %v", len(cs.Columns), cs.Columns)
	}
}

func TestReconcileStampsActorAndTime(t *testing.T) {
	cs := Reconcile(snapshot(), map[string]any{"job_status": "done"}, nil, "dana", testNow)
	if got := cs.Fields[FieldLastModifiedBy]; got != "dana" {
		t.Fatalf("%s = %q; want dana", FieldLastModifiedBy, got)
	}
	if got := cs.Fields[FieldLastModifiedAt]; got != "2026-03-14T09:26:53Z" {
		t.Fatalf("%s = %q", FieldLastModifiedAt, got)
	}
	if cs.Columns[3] != "dana" || cs.Columns[4] != "2026-03-14T09:26:53Z" {
		t.Fatalf("stamp columns not written: %v", cs.Columns)
	}
}

// Without stamp columns in the header the stamps must stay audit-only.
func TestReconcileStampWithoutColumns(t *testing.T) {
	headers := []string{"Work ID", "Job Status"}
	snap := models.RecordSnapshot{
		RowNumber:     2,
		Headers:       headers,
		Row:           []string{"WO-1", "open"},
		FieldToColumn: locate.HeaderMap(headers),
	}
	cs := Reconcile(snap, map[string]any{"job_status": "done"}, nil, "dana", testNow)
	if len(cs.Columns) != 1 {
		t.Fatalf("expected only the job_status write; got %v", cs.Columns)
	}
	if cs.Fields[FieldLastModifiedBy] != "dana" {
		t.Fatalf("stamp missing from field map")
	}
}

func TestReconcileEmptyProposalStillStamps(t *testing.T) {
	cs := Reconcile(snapshot(), nil, nil, "dana", testNow)
	if cs.Empty() {
		t.Fatalf("stamps should produce column writes when columns exist")
	}
	if len(cs.Columns) != 2 {
		t.Fatalf("expected only the two stamp writes; got %v", cs.Columns)
	}
}

func TestReconcileNumberRendering(t *testing.T) {
	headers := []string{"Work ID", "Qty", "Price"}
	snap := models.RecordSnapshot{
		RowNumber: 2, Headers: headers,
		Row:           []string{"WO-1", "", ""},
		FieldToColumn: locate.HeaderMap(headers),
	}
	cs := Reconcile(snap, map[string]any{"qty": float64(3), "price": 2.5}, nil, "dana", testNow)
	if cs.Columns[1] != "3" {
		t.Fatalf("integer-valued float rendered %q", cs.Columns[1])
	}
	if cs.Columns[2] != "2.5" {
		t.Fatalf("fractional float rendered %q", cs.Columns[2])
	}
}
