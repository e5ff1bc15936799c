// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Flush pipeline: one dedicated background worker per process, a FIFO
// queue, and the dispatch predicate of spec §4.4.
//
// Grounded on original_source/src/apm_flush.c for the protocol (producer
// enqueues and signals, consumer dequeues-serializes-POSTs-frees), and on
// spec §9's own redesign note — "a bounded channel with a single consumer,
// cancellation via a shutdown signal, and a drain-before-close policy" — in
// place of the C original's mutex+condvar+cursor-reset-on-free linked list,
// which a channel renders unnecessary: there is no shared cursor to reset
// because the channel itself owns the FIFO ordering.
package apm

import (
	"context"
	"sync"
	"time"

	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
	"github.com/hansenhahn/terra-apm-agent-go/internal/transport"
)

// queueCapacity bounds the flush queue. A full queue drops the newest
// transaction rather than blocking the caller's hot path, matching spec
// §5's "application-facing calls ... never perform network I/O on the hot
// path" guarantee.
const queueCapacity = 1024

type flushWorker struct {
	queue        chan *Transaction
	done         chan struct{}
	wg           sync.WaitGroup
	constraints  Constraints
	transport    *transport.Client
	metadataLine []byte
}

func newFlushWorker(c Constraints, t *transport.Client, metadataLine []byte) *flushWorker {
	return &flushWorker{
		queue:        make(chan *Transaction, queueCapacity),
		done:         make(chan struct{}),
		constraints:  c,
		transport:    t,
		metadataLine: metadataLine,
	}
}

func (f *flushWorker) start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for tx := range f.queue {
			f.process(tx)
		}
	}()
}

// enqueue appends a finished transaction. Producer side of spec §4.4's
// protocol: never blocks the caller past an O(1) channel send.
func (f *flushWorker) enqueue(tx *Transaction) {
	select {
	case f.queue <- tx:
	default:
		log.Warn("flush: queue full, dropping transaction %s", tx.ID)
	}
}

// shouldFlush evaluates spec §4.4's dispatch predicate: flush_if_error OR
// duration > flush_if_min_duration.
func (f *flushWorker) shouldFlush(tx *Transaction) bool {
	if f.constraints.FlushIfError && tx.Outcome == OutcomeFailure {
		return true
	}
	minMillis := float64(f.constraints.FlushIfMinDuration.Microseconds()) / 1000.0
	return tx.Duration > minMillis
}

func (f *flushWorker) process(tx *Transaction) {
	if !f.shouldFlush(tx) {
		return
	}

	body, err := SerializeTransaction(tx)
	if err != nil {
		log.Error("flush: serialize transaction %s failed: %v", tx.ID, err)
		return
	}

	payload := make([]byte, 0, len(f.metadataLine)+len(body))
	payload = append(payload, f.metadataLine...)
	payload = append(payload, body...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := f.transport.PostNDJSON(ctx, "/intake/v2/events", payload)
	if err != nil {
		log.Error("flush: POST failed for transaction %s: %v", tx.ID, err)
		return
	}
	defer resp.Close()

	if !resp.Accepted() {
		log.Error("flush: intake rejected transaction %s with status %d", tx.ID, resp.StatusCode)
	}
}

// shutdown closes the queue (no further enqueues are accepted) and waits
// for the worker to drain it, bounded by ctx — spec §5's "drain-before-
// close policy".
func (f *flushWorker) shutdown(ctx context.Context) {
	close(f.queue)
	drained := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		log.Warn("flush: shutdown deadline exceeded, remaining queue entries lost")
	}
}
