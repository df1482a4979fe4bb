package store

import (
	"path/filepath"
	"testing"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
)

func openTemp(t *testing.T) {
	t.Helper()
	logger.Init("error")
	if err := Open(filepath.Join(t.TempDir(), "log")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSaveAndGetMessage(t *testing.T) {
	openTemp(t)
	m := models.Message{
		ID:      "m1",
		Channel: "chan-a",
		Sender:  "dana",
		Body:    models.TextBody("hello"),
		TS:      1000,
	}
	if err := SaveMessage(m); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	got, err := GetMessage("m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Sender != "dana" || got.Body.DisplayText() != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	openTemp(t)
	if _, err := GetMessage("nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestSaveMessageFirstWriteWins(t *testing.T) {
	openTemp(t)
	if err := SaveMessage(models.Message{ID: "m1", Channel: "c", Body: models.TextBody("first"), TS: 1}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := SaveMessage(models.Message{ID: "m1", Channel: "c", Body: models.TextBody("second"), TS: 2}); err != nil {
		t.Fatalf("SaveMessage overwrite attempt: %v", err)
	}
	got, err := GetMessage("m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Body.DisplayText() != "first" {
		t.Fatalf("message mutated; want first, got %q", got.Body.DisplayText())
	}
}

func TestSaveMessageDropsCrossChannelParent(t *testing.T) {
	openTemp(t)
	if err := SaveMessage(models.Message{ID: "root", Channel: "chan-a", Body: models.TextBody("root"), TS: 1}); err != nil {
		t.Fatalf("SaveMessage root: %v", err)
	}
	if err := SaveMessage(models.Message{ID: "reply", ParentID: "root", Channel: "chan-b", Body: models.TextBody("reply"), TS: 2}); err != nil {
		t.Fatalf("SaveMessage reply: %v", err)
	}
	got, err := GetMessage("reply")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.ParentID != "" {
		t.Fatalf("cross-channel parent kept: %q", got.ParentID)
	}
}

func TestListChannelMessagesOrderAndScope(t *testing.T) {
	openTemp(t)
	for i, id := range []string{"a", "b", "c"} {
		m := models.Message{ID: id, Channel: "chan-a", Body: models.TextBody(id), TS: int64(1000 + i)}
		if err := SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage %s: %v", id, err)
		}
	}
	if err := SaveMessage(models.Message{ID: "other", Channel: "chan-b", Body: models.TextBody("x"), TS: 999}); err != nil {
		t.Fatalf("SaveMessage other: %v", err)
	}
	msgs, err := ListChannelMessages("chan-a")
	if err != nil {
		t.Fatalf("ListChannelMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages; got %d", len(msgs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].ID != want {
			t.Fatalf("order mismatch at %d: want %s got %s", i, want, msgs[i].ID)
		}
	}
	if lim, _ := ListChannelMessages("chan-a", 2); len(lim) != 2 || lim[0].ID != "b" {
		t.Fatalf("limit should keep newest entries; got %+v", lim)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	openTemp(t)
	if err := SaveMessage(models.Message{ID: "old", Channel: "c", Body: models.TextBody("old"), TS: 1000}); err != nil {
		t.Fatalf("SaveMessage old: %v", err)
	}
	if err := SaveMessage(models.Message{ID: "new", Channel: "c", Body: models.TextBody("new"), TS: 9000}); err != nil {
		t.Fatalf("SaveMessage new: %v", err)
	}
	n, err := PurgeOlderThan(5000)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged; got %d", n)
	}
	if _, err := GetMessage("old"); err != ErrNotFound {
		t.Fatalf("old message should be gone; got %v", err)
	}
	if _, err := GetMessage("new"); err != nil {
		t.Fatalf("new message should remain; got %v", err)
	}
}
