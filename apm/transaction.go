// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import "github.com/hansenhahn/terra-apm-agent-go/internal/ids"

// Transaction is the root of one distributed-trace unit of work within the
// process (spec §3). Grounded on original_source/src/apm_transaction.c.
type Transaction struct {
	ID          string
	TraceID     string
	ParentID    string
	Name        string
	Type        string
	Timestamp   int64
	Duration    float64
	Outcome     string
	Result      string
	Children    []*Span
	Errors      []*Error
	SpanDepth   int
	SpanCount   int
	SpanDropped int
}

// newTransaction constructs a Transaction, inheriting traceID when provided
// (an upstream traceparent) or generating a fresh one otherwise — spec §3's
// "inherited if a parent trace was provided, otherwise freshly generated".
func newTransaction(name, txType, traceID, parentID string) *Transaction {
	if traceID == "" {
		traceID = ids.NewTraceID()
	}
	return &Transaction{
		ID:        ids.NewTransactionID(),
		TraceID:   traceID,
		ParentID:  parentID,
		Name:      name,
		Type:      txType,
		Timestamp: ids.NowMicros(),
	}
}

// end stamps outcome, result, and duration, matching
// apm_end_capture_transaction_internal's MICROS(tv) - timestamp computation
// (converted from microseconds to fractional milliseconds).
func (t *Transaction) end(outcome, result string) {
	t.Outcome = outcome
	t.Result = result
	t.Duration = float64(ids.NowMicros()-t.Timestamp) / 1000.0
}

// pendingSpan returns the innermost open span under this transaction, or
// nil if none is open — spec §4.2's pending-span discovery algorithm,
// entered from the transaction's last direct child.
func (t *Transaction) pendingSpan() *Span {
	if len(t.Children) == 0 {
		return nil
	}
	return pendingDescendant(t.Children[len(t.Children)-1])
}
