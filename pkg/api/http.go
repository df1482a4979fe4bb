// Package api is the HTTP surface: the provider webhook plus a few
// introspection endpoints. The webhook acknowledges before processing
// completes; reconciliation continues asynchronously on the ingest
// workers.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdesk/sheetbridge/pkg/config"
	"github.com/opsdesk/sheetbridge/pkg/ingest"
	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/store"
	"github.com/opsdesk/sheetbridge/pkg/telemetry"
	"github.com/opsdesk/sheetbridge/pkg/thread"
	"github.com/opsdesk/sheetbridge/pkg/utils"
)

// Deps are the collaborators the HTTP layer enqueues into.
type Deps struct {
	Queue *ingest.Queue
	Cfg   *config.Config
}

// Router builds the service router.
func Router(d Deps) *mux.Router {
	limiters := newLimiterPool(d.Cfg.Server.RateLimit)
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !store.Ready() {
			utils.JSONError(w, http.StatusServiceUnavailable, "message log not ready")
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/v1/webhook/messages", func(w http.ResponseWriter, r *http.Request) {
		if !limiters.allow(r) {
			telemetry.WebhookRequests.WithLabelValues("rate_limited").Inc()
			utils.JSONError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		if tok := d.Cfg.Server.WebhookToken; tok != "" {
			got := r.Header.Get("X-Webhook-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
				telemetry.WebhookRequests.WithLabelValues("unauthorized").Inc()
				utils.JSONError(w, http.StatusUnauthorized, "invalid webhook token")
				return
			}
		}

		var env webhookEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			telemetry.WebhookRequests.WithLabelValues("bad_request").Inc()
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		in := env.normalize()
		if in.Channel == "" {
			telemetry.WebhookRequests.WithLabelValues("bad_request").Inc()
			utils.JSONError(w, http.StatusBadRequest, "missing channel")
			return
		}
		payload, err := json.Marshal(in)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "encode failed")
			return
		}
		op := &ingest.Op{MsgID: in.ID, Channel: in.Channel, Payload: payload, TS: in.TS}
		if err := d.Queue.TryEnqueue(op); err != nil {
			if errors.Is(err, ingest.ErrQueueFull) {
				telemetry.WebhookRequests.WithLabelValues("queue_full").Inc()
				telemetry.QueueDropped.Inc()
				utils.JSONError(w, http.StatusServiceUnavailable, "queue full")
				return
			}
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		telemetry.WebhookRequests.WithLabelValues("accepted").Inc()
		logger.Info("webhook_accepted", "id", in.ID, "channel", in.Channel, "reply", in.ParentID != "")
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "queued", "id": in.ID})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		channel := mux.Vars(r)["id"]
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}
		msgs, err := store.ListChannelMessages(channel, limit)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"channel": channel, "messages": msgs})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/messages/{id}/thread", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		m, err := store.GetMessage(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "message not found")
				return
			}
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hist := thread.Resolve(id, m.Channel)
		_ = utils.JSONWrite(w, http.StatusOK, hist)
	}).Methods(http.MethodGet)

	return r
}
