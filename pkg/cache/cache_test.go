package cache

import (
	"testing"
	"time"
)

func TestRowHintsPutGet(t *testing.T) {
	c := NewRowHints(time.Minute)
	c.Put("WO-1", 7)
	if got := c.Get("WO-1"); got != 7 {
		t.Fatalf("Get = %d; want 7", got)
	}
	if got := c.Get("WO-2"); got != 0 {
		t.Fatalf("missing key should return 0; got %d", got)
	}
}

func TestRowHintsExpiry(t *testing.T) {
	c := NewRowHints(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	c.Put("WO-1", 7)
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if got := c.Get("WO-1"); got != 0 {
		t.Fatalf("expired entry served: %d", got)
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read")
	}
}

// Invalidation is targeted: writes for one identifier must not drop
// hints for the others.
func TestRowHintsTargetedInvalidation(t *testing.T) {
	c := NewRowHints(time.Minute)
	c.Put("WO-1", 2)
	c.Put("WO-2", 3)
	c.Invalidate("WO-1")
	if c.Get("WO-1") != 0 {
		t.Fatalf("invalidated entry survived")
	}
	if c.Get("WO-2") != 3 {
		t.Fatalf("unrelated entry dropped")
	}
}

func TestRowHintsDisabled(t *testing.T) {
	c := NewRowHints(0)
	c.Put("WO-1", 7)
	if c.Get("WO-1") != 0 {
		t.Fatalf("disabled cache must never hit")
	}
}

func TestRowHintsRejectsHeaderRows(t *testing.T) {
	c := NewRowHints(time.Minute)
	c.Put("WO-1", 1)
	if c.Get("WO-1") != 0 {
		t.Fatalf("row 1 is the header and must not be hinted")
	}
}

func TestRowHintsNilSafe(t *testing.T) {
	var c *RowHints
	c.Put("WO-1", 2)
	if c.Get("WO-1") != 0 || c.Len() != 0 {
		t.Fatalf("nil cache should be inert")
	}
	c.Invalidate("WO-1")
}
