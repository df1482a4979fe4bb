// Package ingest drives an inbound message through the reconciliation
// pipeline: persist → resolve thread → extract → locate → reconcile →
// write → audit. Per-message state advances Received → ThreadResolved →
// IdentifierExtracted → {RecordFound → Reconciled → Written → Audited}
// with RecordNotFound and NoIdentifier as ignored terminals. There is
// no retry loop in here: a failed write is surfaced and abandoned.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/audit"
	"github.com/opsdesk/sheetbridge/pkg/cache"
	"github.com/opsdesk/sheetbridge/pkg/extract"
	"github.com/opsdesk/sheetbridge/pkg/locate"
	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
	"github.com/opsdesk/sheetbridge/pkg/reconcile"
	"github.com/opsdesk/sheetbridge/pkg/store"
	"github.com/opsdesk/sheetbridge/pkg/tabular"
	"github.com/opsdesk/sheetbridge/pkg/telemetry"
	"github.com/opsdesk/sheetbridge/pkg/thread"
)

// Pipeline holds the collaborators one reconciliation attempt needs.
type Pipeline struct {
	Sheet     tabular.Client
	SheetSpec tabular.RangeSpec
	Extractor extract.Extractor
	Audit     *audit.Recorder
	Locks     *KeyLocks
	Hints     *cache.RowHints

	// IdentifierColumn is the header name of the work-id column.
	IdentifierColumn string
	// AppendFields lists fields whose updates concatenate instead of
	// overwrite (canonically free-text notes).
	AppendFields []string
	// AllowCreate enables row creation for root messages describing a
	// brand-new record. Replies without a matching record are always
	// ignored regardless of this flag.
	AllowCreate bool

	// now is swappable for tests.
	now func() time.Time
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Process handles one inbound message to a terminal state. The only
// error it returns is a tabular-store failure (read or write) for an
// otherwise actionable message; every degraded outcome is logged,
// counted and swallowed.
func (p *Pipeline) Process(ctx context.Context, in models.InboundMessage) error {
	m := in.Msg()
	if m.ID == "" || m.Channel == "" {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeInvalid).Inc()
		logger.Warn("inbound_message_invalid", "id", m.ID, "channel", m.Channel)
		return nil
	}
	if m.TS == 0 {
		m.TS = p.clock().UTC().UnixMilli()
	}
	if store.Ready() {
		if err := store.SaveMessage(m); err != nil {
			// the log is advisory for reconciliation; keep going
			logger.Warn("inbound_message_save_failed", "id", m.ID, "error", err)
		}
	}
	if m.IsReply() {
		return p.processReply(ctx, m)
	}
	return p.processRoot(ctx, m)
}

func (p *Pipeline) processReply(ctx context.Context, m models.Message) error {
	hist := thread.ResolveFrom(m)
	if degradedToQuote(hist, m) {
		telemetry.ThreadFallbacks.Inc()
	}
	threadText := hist.FullHistory()
	if threadText == "" {
		logger.Info("reply_without_thread_context", "id", m.ID, "channel", m.Channel)
	}

	res, err := p.Extractor.Extract(ctx, threadText, m.Body.DisplayText())
	if err != nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeExtractFailed).Inc()
		logger.Warn("extraction_failed", "id", m.ID, "error", err)
		return nil
	}
	if !res.IdentifierFound || res.Identifier == "" {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeNoIdentifier).Inc()
		logger.Info("reply_ignored_no_identifier", "id", m.ID)
		return nil
	}
	id := res.Identifier

	// serialize all attempts for this identifier; the snapshot below is
	// read fresh under the lock, immediately before the write
	unlock := p.Locks.Lock(id)
	defer unlock()

	snap, err := locate.LocateWithHint(ctx, p.Sheet, p.SheetSpec, p.IdentifierColumn, id, p.Hints.Get(id))
	if errors.Is(err, locate.ErrNotFound) {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeRecordNotFound).Inc()
		logger.Info("reply_ignored_record_not_found", "id", m.ID, "identifier", id)
		return nil
	}
	if err != nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeStoreError).Inc()
		return fmt.Errorf("locate %s: %w", id, err)
	}

	cs := reconcile.Reconcile(snap, res.NewValues, p.AppendFields, actorFor(m), p.clock())
	if len(changedFields(cs)) == 0 {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeIgnored).Inc()
		logger.Info("reply_ignored_no_changes", "id", m.ID, "identifier", id)
		return nil
	}

	if err := p.Sheet.WriteCells(ctx, p.SheetSpec, snap.RowNumber, cs.Columns); err != nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeWriteFailed).Inc()
		logger.Error("record_write_failed", "identifier", id, "row", snap.RowNumber, "error", err)
		return fmt.Errorf("write %s row %d: %w", id, snap.RowNumber, err)
	}
	// targeted refresh: only this identifier's hint changes
	p.Hints.Invalidate(id)
	p.Hints.Put(id, snap.RowNumber)

	p.Audit.Record(ctx, id, models.OpUpdate, describeChange(models.OpUpdate, cs), cs, actorFor(m))
	telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeAudited).Inc()
	logger.Info("record_updated", "identifier", id, "row", snap.RowNumber, "fields", changedFields(cs))
	return nil
}

// processRoot handles a non-reply message: when creation is enabled and
// the extraction describes a brand-new record, append a row; otherwise
// the message only lands in the message log as a future thread anchor.
func (p *Pipeline) processRoot(ctx context.Context, m models.Message) error {
	if !p.AllowCreate {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeIgnored).Inc()
		return nil
	}
	res, err := p.Extractor.Extract(ctx, "", m.Body.DisplayText())
	if err != nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeExtractFailed).Inc()
		logger.Warn("extraction_failed", "id", m.ID, "error", err)
		return nil
	}
	if !res.NewRecord || len(res.NewValues) == 0 {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeIgnored).Inc()
		return nil
	}
	id := res.Identifier
	if id == "" {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeNoIdentifier).Inc()
		logger.Info("root_ignored_no_identifier", "id", m.ID)
		return nil
	}

	unlock := p.Locks.Lock(id)
	defer unlock()

	// never create a second row for an identifier that already exists
	if _, err := locate.Locate(ctx, p.Sheet, p.SheetSpec, p.IdentifierColumn, id); err == nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeIgnored).Inc()
		logger.Info("root_ignored_record_exists", "id", m.ID, "identifier", id)
		return nil
	} else if !errors.Is(err, locate.ErrNotFound) {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeStoreError).Inc()
		return fmt.Errorf("locate %s: %w", id, err)
	}

	rows, err := p.Sheet.ReadRange(ctx, p.SheetSpec)
	if err != nil || len(rows) == 0 {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeStoreError).Inc()
		return fmt.Errorf("read headers for create: %w", err)
	}
	headers := rows[0]
	cols := locate.HeaderMap(headers)
	idCol, ok := cols[locate.NormalizeField(p.IdentifierColumn)]
	if !ok {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeStoreError).Inc()
		return fmt.Errorf("identifier column %q not present in header row", p.IdentifierColumn)
	}

	// reuse the reconciler against an all-empty snapshot to map the
	// extracted values (and stamps) onto columns
	blank := models.RecordSnapshot{Headers: headers, FieldToColumn: cols}
	cs := reconcile.Reconcile(blank, res.NewValues, p.AppendFields, actorFor(m), p.clock())

	row := make([]string, len(headers))
	for col, v := range cs.Columns {
		if col < len(row) {
			row[col] = v
		}
	}
	row[idCol] = id
	if err := p.Sheet.AppendRow(ctx, p.SheetSpec, row); err != nil {
		telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeWriteFailed).Inc()
		logger.Error("record_create_failed", "identifier", id, "error", err)
		return fmt.Errorf("append %s: %w", id, err)
	}

	p.Audit.Record(ctx, id, models.OpCreate, describeChange(models.OpCreate, cs), cs, actorFor(m))
	telemetry.ReplyOutcomes.WithLabelValues(telemetry.OutcomeCreated).Inc()
	logger.Info("record_created", "identifier", id, "fields", changedFields(cs))
	return nil
}

func actorFor(m models.Message) string {
	if m.Sender != "" {
		return m.Sender
	}
	return "unknown"
}

// changedFields lists the non-stamp fields a change set writes, sorted.
func changedFields(cs models.ChangeSet) []string {
	var out []string
	for f := range cs.Fields {
		if f == reconcile.FieldLastModifiedBy || f == reconcile.FieldLastModifiedAt {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func describeChange(op string, cs models.ChangeSet) string {
	fields := changedFields(cs)
	verb := "updated"
	if op == models.OpCreate {
		verb = "created with"
	}
	desc := verb
	for i, f := range fields {
		if i == 0 {
			desc += " "
		} else {
			desc += ", "
		}
		desc += f
	}
	return desc
}

// degradedToQuote reports whether the history is the quoted-message
// fallback rather than a chain recovered from the log.
func degradedToQuote(h models.ThreadHistory, m models.Message) bool {
	return len(h.Entries) == 1 &&
		h.Entries[0].Msg.ID == "" &&
		m.Quoted != "" &&
		h.Entries[0].Msg.Body.DisplayText() == m.Quoted
}
