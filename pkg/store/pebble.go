package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
)

var db *pebble.DB

// dbPath remembers where the log was opened, for diagnostics.
var dbPath string

// seq reduces key collisions when multiple messages share the same
// millisecond timestamp.
var seq uint64

// ErrNotFound is returned when a message id is absent from the log.
var ErrNotFound = errors.New("message not found")

// Open opens (or creates) the Pebble message log at the given path and
// keeps a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_message_log", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("message_log_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("message_log_opened", "path", path)
	return nil
}

// Close closes the opened log if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("message_log_closed")
	return nil
}

// Ready reports whether the log is opened and usable.
func Ready() bool {
	return db != nil
}

// SaveMessage appends a message to its channel log and indexes it by id
// for parent-chain lookups. The log is append-only: a message id that
// already exists is left untouched (first write wins). A parent
// reference pointing outside the message's channel is dropped with a
// warning before the write; cross-channel parents never enter the log.
func SaveMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("message log not opened; call store.Open first")
	}
	if m.ID == "" {
		return fmt.Errorf("missing message id")
	}
	if m.Channel == "" {
		return fmt.Errorf("missing channel id")
	}

	// immutability: never overwrite an existing message
	if _, err := GetMessage(m.ID); err == nil {
		logger.Debug("message_exists_skipped", "id", m.ID)
		return nil
	}

	if m.ParentID != "" {
		if parent, err := GetMessage(m.ParentID); err == nil {
			if parent.Channel != m.Channel {
				logger.Warn("cross_channel_parent_dropped",
					"id", m.ID, "parent", m.ParentID,
					"channel", m.Channel, "parent_channel", parent.Channel)
				m.ParentID = ""
			}
		}
		// an unknown parent is kept as-is: the parent may arrive later
		// or the resolver will fall back to the quoted body
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s := atomic.AddUint64(&seq, 1)
	key := ChanKey(m.Channel, m.TS, s)
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "channel", m.Channel, "key", key, "error", err)
		return err
	}

	if err := db.Set([]byte(MsgKey(m.ID)), data, pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "id", m.ID, "error", err)
		return err
	}
	logger.Info("message_saved", "channel", m.Channel, "id", m.ID, "reply", m.IsReply())
	return nil
}

// GetMessage returns the message stored under the given id, or
// ErrNotFound.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("message log not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(MsgKey(id)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message JSON for %s: %w", id, err)
	}
	return m, nil
}

// ListChannelMessages returns messages for a channel in insertion
// order. An optional limit keeps only the most recent n entries.
func ListChannelMessages(channel string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("message log not opened; call store.Open first")
	}
	prefix := []byte(chanPrefix(channel))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_invalid_message_json", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(limit) > 0 && limit[0] > 0 && limit[0] < len(out) {
		out = out[len(out)-limit[0]:]
	}
	return out, nil
}

// PurgeOlderThan removes channel-log entries and id-index entries whose
// timestamp is strictly below cutoffMillis. It returns the number of
// messages removed. Used by the retention runner; the audit trail is
// never touched here.
func PurgeOlderThan(cutoffMillis int64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("message log not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var doomed [][]byte
	for iter.SeekGE([]byte("chan:")); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, []byte("chan:")) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.TS >= cutoffMillis {
			continue
		}
		doomed = append(doomed, append([]byte(nil), k...))
		doomed = append(doomed, []byte(MsgKey(m.ID)))
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}

	wb := db.NewBatch()
	for _, k := range doomed {
		_ = wb.Delete(k, nil)
	}
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("purge_apply_failed", "error", err)
		return 0, err
	}
	n := len(doomed) / 2
	if n > 0 {
		logger.Info("messages_purged", "count", n, "cutoff_ms", cutoffMillis)
	}
	return n, nil
}
