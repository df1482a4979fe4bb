package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
)

// Processor runs pipeline workers over a queue. Each worker handles one
// message at a time; cross-message coordination happens only through
// the pipeline's per-identifier locks.
type Processor struct {
	q *Queue
	p *Pipeline

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor wires a queue to a pipeline.
func NewProcessor(q *Queue, p *Pipeline) *Processor {
	return &Processor{q: q, p: p, stop: make(chan struct{})}
}

// Start launches n workers (minimum 1).
func (pr *Processor) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		pr.wg.Add(1)
		go func() {
			defer pr.wg.Done()
			pr.q.RunWorker(pr.stop, pr.handle)
		}()
	}
	logger.Info("ingest_workers_started", "workers", n)
}

// Stop signals workers and waits for in-flight messages to finish.
// Once the transport has acknowledged a message there is no mid-flight
// cancellation; work runs to completion or failure.
func (pr *Processor) Stop() {
	close(pr.stop)
	pr.wg.Wait()
	logger.Info("ingest_workers_stopped")
}

// Wait blocks until workers exit on their own (queue closed and
// drained).
func (pr *Processor) Wait() {
	pr.wg.Wait()
	logger.Info("ingest_workers_drained")
}

func (pr *Processor) handle(op *Op) error {
	var in models.InboundMessage
	if err := json.Unmarshal(op.Payload, &in); err != nil {
		logger.Error("ingest_payload_decode_failed", "id", op.MsgID, "error", err)
		return err
	}
	if err := pr.p.Process(context.Background(), in); err != nil {
		// store failure for an acknowledged message: surfaced here,
		// abandoned rather than retried
		logger.Error("reconciliation_failed", "id", in.ID, "error", err)
		return err
	}
	return nil
}
