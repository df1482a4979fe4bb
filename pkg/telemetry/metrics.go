// Package telemetry exposes prometheus metrics for the ingest pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reply pipeline terminal outcomes.
const (
	OutcomeAudited        = "audited"
	OutcomeCreated        = "created"
	OutcomeRecordNotFound = "record_not_found"
	OutcomeNoIdentifier   = "no_identifier"
	OutcomeExtractFailed  = "extract_failed"
	OutcomeStoreError     = "store_error"
	OutcomeWriteFailed    = "write_failed"
	OutcomeIgnored        = "ignored"
	OutcomeInvalid        = "invalid"
)

var (
	// WebhookRequests counts inbound webhook deliveries by status.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetbridge_webhook_requests_total",
		Help: "Inbound webhook deliveries by result.",
	}, []string{"result"})

	// ReplyOutcomes counts terminal pipeline states per processed message.
	ReplyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetbridge_reply_outcomes_total",
		Help: "Terminal reconciliation outcomes per inbound message.",
	}, []string{"outcome"})

	// ThreadFallbacks counts quoted-message fallback resolutions.
	ThreadFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetbridge_thread_quoted_fallbacks_total",
		Help: "Thread resolutions served from the quoted-message fallback.",
	})

	// QueueDropped counts messages rejected by a full ingest queue.
	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetbridge_queue_dropped_total",
		Help: "Messages dropped because the ingest queue was full.",
	})
)

// RegisterQueueDepth installs a gauge reading the live queue length.
func RegisterQueueDepth(length func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "sheetbridge_queue_depth",
		Help: "Current number of queued inbound messages.",
	}, length)
}
