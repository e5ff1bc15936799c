// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package apm is the core trace engine: transaction/span/error lifecycle,
// background flush and metrics workers, and the process-wide default agent.
//
// Grounded on original_source/src/apm.c's public entry points
// (apm_init/apm_begin_transaction/apm_begin_span/.../apm_shutdown) and on
// spec §9's guidance to "encapsulate in an explicit agent object" rather
// than the C original's single global current_transaction.
package apm

import (
	"context"
	"sync"

	"github.com/hansenhahn/terra-apm-agent-go/internal/ids"
	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
	"github.com/hansenhahn/terra-apm-agent-go/internal/metadata"
	"github.com/hansenhahn/terra-apm-agent-go/internal/stackresolver"
	"github.com/hansenhahn/terra-apm-agent-go/internal/transport"
)

// Agent ties together configuration, the current transaction slot, and the
// background workers. One Agent per process is the expected deployment
// (see ActiveAgent), but nothing here prevents constructing more for tests.
type Agent struct {
	cfg          Config
	transport    *transport.Client
	flush        *flushWorker
	metrics      *metricsWorker
	crash        *crashHandler
	metadataLine []byte

	mu      sync.Mutex
	current *Transaction
}

// NewAgent builds an Agent from cfg without starting any goroutines. Call
// Run to start the background workers and crash handler.
func NewAgent(cfg Config) *Agent {
	a := &Agent{cfg: cfg}
	if cfg.Bypass {
		return a
	}

	a.transport = transport.NewClient(cfg.URL, cfg.Token)

	md := metadata.Build(cfg.Name, cfg.Environment, cfg.Version, cfg.CloudProviders)
	line, err := SerializeMetadata(md)
	if err != nil {
		log.Error("apm: metadata serialize failed, falling back to bypass mode: %v", err)
		a.cfg.Bypass = true
		return a
	}
	a.metadataLine = line

	a.flush = newFlushWorker(cfg.Constraints, a.transport, a.metadataLine)
	if cfg.MetricsEnabled {
		a.metrics = newMetricsWorker(a.transport, a.metadataLine, cfg.StatsdAddr)
	}
	a.crash = newCrashHandler(a)

	return a
}

// Run starts the flush worker, the metrics sampler (if enabled), and the
// crash handler. A no-op in bypass mode, matching spec §4.1's "init without
// config" contract.
func (a *Agent) Run() {
	if a.cfg.Bypass {
		return
	}
	a.flush.start()
	if a.metrics != nil {
		a.metrics.start()
	}
	a.crash.install()
}

// Shutdown drains the flush queue (bounded by ctx), stops the metrics
// sampler, and uninstalls the crash handler. A no-op in bypass mode.
func (a *Agent) Shutdown(ctx context.Context) {
	if a.cfg.Bypass {
		return
	}
	a.crash.uninstall()
	if a.metrics != nil {
		a.metrics.shutdown()
	}
	a.flush.shutdown(ctx)
}

func (a *Agent) currentTransaction() *Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// detachCurrentTransaction clears the active transaction slot and returns
// whatever was there, for the crash path's "force-end the current
// transaction" step (spec §4.6) — unlike EndTransaction, the caller owns
// delivery and does not enqueue it to the flush worker.
func (a *Agent) detachCurrentTransaction() *Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	tx := a.current
	a.current = nil
	return tx
}

// BeginTransaction starts a new root unit of work, inheriting traceID/
// parentID from an upstream traceparent when supplied. If a transaction is
// already active, it is auto-ended with outcome "failure" and result
// "superseded" before the new one replaces it — spec §9 Open Question 1's
// resolution, since the engine exposes exactly one active transaction at a
// time per spec §4.2.
func (a *Agent) BeginTransaction(name, txType, traceID, parentID string) {
	if a.cfg.Bypass {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		log.Warn("apm: begin_transaction called while %q is still active, superseding it", a.current.Name)
		a.current.end(OutcomeFailure, "superseded")
		a.enqueueLocked(a.current)
	}
	a.current = newTransaction(name, txType, traceID, parentID)
}

// EndTransaction closes the active transaction and hands it to the flush
// worker. A no-op if no transaction is active.
func (a *Agent) EndTransaction(outcome, result string) {
	if a.cfg.Bypass {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		log.Warn("apm: end_transaction called with no active transaction")
		return
	}
	a.current.end(outcome, result)
	a.enqueueLocked(a.current)
	a.current = nil
}

func (a *Agent) enqueueLocked(tx *Transaction) {
	a.flush.enqueue(tx)
}

// BeginSpan opens a new span nested under the innermost currently pending
// span, or directly under the transaction if none is pending — spec §4.2's
// pending-span discovery algorithm. A no-op if no transaction is active.
func (a *Agent) BeginSpan(name, spanType, subtype string) *Span {
	if a.cfg.Bypass {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		log.Warn("apm: begin_span called with no active transaction")
		return nil
	}

	parentID := a.current.ID
	if pending := a.current.pendingSpan(); pending != nil {
		parentID = pending.ID
		span := newSpan(a.current.ID, a.current.TraceID, parentID, name, spanType, subtype)
		pending.Children = append(pending.Children, span)
		a.current.SpanCount++
		return span
	}

	span := newSpan(a.current.ID, a.current.TraceID, parentID, name, spanType, subtype)
	a.current.Children = append(a.current.Children, span)
	a.current.SpanCount++
	return span
}

// EndSpan closes the innermost pending span under the active transaction. A
// no-op if no transaction, or no pending span, is active.
func (a *Agent) EndSpan(outcome string) {
	if a.cfg.Bypass {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return
	}
	pending := a.current.pendingSpan()
	if pending == nil {
		log.Warn("apm: end_span called with no pending span")
		return
	}
	pending.end(outcome)
}

// end stamps the span's outcome and duration, matching Transaction.end's
// timestamp arithmetic.
func (s *Span) end(outcome string) {
	s.Outcome = outcome
	s.Duration = float64(ids.NowMicros()-s.Timestamp) / 1000.0
}

// CatchError attaches a new Error to the active transaction, parented to the
// innermost pending span if one exists, otherwise to the transaction itself
// — spec §4.2's error-parenting rule. A no-op if no transaction is active.
func (a *Agent) CatchError(culprit, errType, message string, handled bool) {
	if a.cfg.Bypass {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		log.Warn("apm: catch_error called with no active transaction")
		return
	}

	frames := stackresolver.Capture(1)
	parentID := a.current.ID
	if pending := a.current.pendingSpan(); pending != nil {
		parentID = pending.ID
	}
	if culprit == "" {
		culprit = stackresolver.Culprit(frames)
	}

	a.current.Errors = append(a.current.Errors, &Error{
		ID:            ids.NewErrorID(),
		TransactionID: a.current.ID,
		TraceID:       a.current.TraceID,
		ParentID:      parentID,
		Culprit:       culprit,
		Timestamp:     ids.NowMicros(),
		Exception: Exception{
			Type:       errType,
			Message:    message,
			Handled:    handled,
			Stacktrace: framesToStacktrace(frames),
		},
	})
}

var (
	activeMu    sync.Mutex
	activeAgent *Agent
)

// ActiveAgent returns the process-wide default agent, or a bypassed no-op
// agent if none has been installed — so interposers and the crash handler
// always have something safe to call into. The Go analogue of the C
// original's single current_transaction global, per spec §9.
func ActiveAgent() *Agent {
	activeMu.Lock()
	defer activeMu.Unlock()
	if activeAgent == nil {
		activeAgent = NewAgent(DefaultConfig())
	}
	return activeAgent
}

// SetActiveAgent installs a as the process-wide default agent.
func SetActiveAgent(a *Agent) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeAgent = a
}
