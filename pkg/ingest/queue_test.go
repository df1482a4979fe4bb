package ingest

import (
	"context"
	"testing"
	"time"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	q := NewQueue(4)
	err := q.TryEnqueue(&Op{MsgID: "m1", Channel: "c", Payload: []byte(`{"id":"m1"}`), TS: 1})
	if err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d; want 1", q.Len())
	}
	it := <-q.Out()
	if it.Op.MsgID != "m1" || string(it.Op.Payload) != `{"id":"m1"}` {
		t.Fatalf("dequeued op mismatch: %+v", it.Op)
	}
	if it.Op.EnqSeq == 0 {
		t.Fatalf("enqueue sequence not assigned")
	}
	it.Done()
	it.Done() // Done must be idempotent
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue(&Op{MsgID: "m1", Channel: "c"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.TryEnqueue(&Op{MsgID: "m2", Channel: "c"}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull; got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped = %d; want 1", q.Dropped())
	}
}

func TestQueueEnqueueCancelled(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue(&Op{MsgID: "m1", Channel: "c"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, &Op{MsgID: "m2", Channel: "c"}); err == nil {
		t.Fatalf("expected context error on full queue")
	}
}

// Pooled payload buffers must carry an independent copy of the
// producer's bytes.
func TestQueueCopiesPayload(t *testing.T) {
	q := NewQueue(1)
	payload := []byte("original")
	if err := q.TryEnqueue(&Op{MsgID: "m1", Channel: "c", Payload: payload}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	payload[0] = 'X'
	it := <-q.Out()
	defer it.Done()
	if string(it.Op.Payload) != "original" {
		t.Fatalf("payload aliased producer memory: %q", it.Op.Payload)
	}
}

func TestQueueCloseDrainsWorkers(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 3; i++ {
		if err := q.TryEnqueue(&Op{MsgID: "m", Channel: "c", Payload: []byte("x")}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	q.Close()
	var handled int
	q.RunWorker(make(chan struct{}), func(*Op) error {
		handled++
		return nil
	})
	if handled != 3 {
		t.Fatalf("worker drained %d items; want 3", handled)
	}
}
