// Package audit appends a row to the audit trail for every applied
// mutation. The trail is deliberately decoupled from the primary update
// path: losing an audit row is tolerable, losing a data update is not,
// so nothing in here propagates an error to the caller.
package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
	"github.com/opsdesk/sheetbridge/pkg/tabular"
)

// Headers is the fixed 6-column layout of the audit sheet.
var Headers = []string{"identifier", "operation", "description", "timestamp", "actor", "details"}

// Recorder appends audit rows to a dedicated sheet and mirrors them to
// the audit file sink when one is attached.
type Recorder struct {
	client tabular.Client
	spec   tabular.RangeSpec
}

// NewRecorder builds a Recorder writing to the given sheet.
func NewRecorder(client tabular.Client, spec tabular.RangeSpec) *Recorder {
	return &Recorder{client: client, spec: spec}
}

// Record appends one audit row. Failures are logged and swallowed;
// Record never returns an error and never panics the caller's update.
func (r *Recorder) Record(ctx context.Context, identifier, op, description string, cs models.ChangeSet, actor string) {
	if r == nil || r.client == nil {
		return
	}
	details := "{}"
	if b, err := json.Marshal(cs.Fields); err == nil {
		details = string(b)
	}
	e := models.AuditEntry{
		Identifier:  identifier,
		Op:          op,
		Description: description,
		TS:          time.Now().UTC().UnixMilli(),
		Actor:       actor,
		DetailsJSON: details,
	}
	row := []string{
		e.Identifier,
		e.Op,
		e.Description,
		strconv.FormatInt(e.TS, 10),
		e.Actor,
		e.DetailsJSON,
	}
	if err := r.client.AppendRow(ctx, r.spec, row); err != nil {
		logger.Error("audit_append_failed",
			"identifier", identifier, "op", op, "error", err)
	}
	if logger.Audit != nil {
		logger.Audit.Info("audit_entry",
			"identifier", e.Identifier, "op", e.Op, "description", e.Description,
			"ts", e.TS, "actor", e.Actor, "details", e.DetailsJSON)
	}
}
