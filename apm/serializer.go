// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Serializer: converts transactions, spans, errors, and metrics into
// NDJSON lines, per spec §4.3.
//
// Grounded on apm_transaction_to_json / apm_span_to_json / apm_error.c's
// JSON shape in original_source/, with encoding handled by
// github.com/goccy/go-json instead of cJSON / stdlib encoding/json.
package apm

import (
	"bytes"

	json "github.com/goccy/go-json"

	"github.com/hansenhahn/terra-apm-agent-go/internal/metadata"
)

type wireSpanCount struct {
	Started int `json:"started"`
	Dropped int `json:"dropped"`
}

type wireTransaction struct {
	ID        string        `json:"id"`
	TraceID   string        `json:"trace_id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Duration  float64       `json:"duration"`
	Result    string        `json:"result,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	SpanCount wireSpanCount `json:"span_count"`
}

type wireSpan struct {
	ID            string                 `json:"id"`
	TransactionID string                 `json:"transaction_id"`
	TraceID       string                 `json:"trace_id"`
	ParentID      string                 `json:"parent_id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Subtype       string                 `json:"subtype,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
	Duration      float64                `json:"duration"`
	Outcome       string                 `json:"outcome,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

type wireException struct {
	Type       string            `json:"type,omitempty"`
	Message    string            `json:"message,omitempty"`
	Handled    bool              `json:"handled"`
	Stacktrace []wireStackFrame  `json:"stacktrace,omitempty"`
}

type wireStackFrame struct {
	Function string `json:"function"`
	Filename string `json:"filename"`
}

type wireError struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	TraceID       string        `json:"trace_id"`
	ParentID      string        `json:"parent_id"`
	Culprit       string        `json:"culprit,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	Exception     wireException `json:"exception"`
}

func marshalLine(buf *bytes.Buffer, key string, v interface{}) error {
	wrapper := map[string]interface{}{key: v}
	enc, err := json.Marshal(wrapper)
	if err != nil {
		return err
	}
	buf.Write(enc)
	buf.WriteByte('\n')
	return nil
}

// SerializeMetadata renders the one-shot metadata preamble, cached at init
// and reused by value across every subsequent batch (spec §4.4).
func SerializeMetadata(md metadata.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalLine(&buf, "metadata", md); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func errorToWire(e *Error) wireError {
	frames := make([]wireStackFrame, len(e.Exception.Stacktrace))
	for i, f := range e.Exception.Stacktrace {
		frames[i] = wireStackFrame{Function: f.Function, Filename: f.Filename}
	}
	return wireError{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		TraceID:       e.TraceID,
		ParentID:      e.ParentID,
		Culprit:       e.Culprit,
		Timestamp:     e.Timestamp,
		Exception: wireException{
			Type:       e.Exception.Type,
			Message:    e.Exception.Message,
			Handled:    e.Exception.Handled,
			Stacktrace: frames,
		},
	}
}

func spanToWire(s *Span) wireSpan {
	return wireSpan{
		ID:            s.ID,
		TransactionID: s.TransactionID,
		TraceID:       s.TraceID,
		ParentID:      s.ParentID,
		Name:          s.Name,
		Type:          s.Type,
		Subtype:       s.Subtype,
		Timestamp:     s.Timestamp,
		Duration:      s.Duration,
		Outcome:       s.Outcome,
		Context:       s.Context.Map(),
	}
}

// appendSpansPostOrder walks the span tree depth-first, children before
// parent, matching apm_dump_span's Lwalk(LARGHOME)-then-recurse-then-emit
// shape in apm_span.c.
func appendSpansPostOrder(buf *bytes.Buffer, spans []*Span) error {
	for _, s := range spans {
		if err := appendSpansPostOrder(buf, s.Children); err != nil {
			return err
		}
		if err := marshalLine(buf, "span", spanToWire(s)); err != nil {
			return err
		}
	}
	return nil
}

// SerializeTransaction assembles the full NDJSON batch body for one
// finished transaction: N error lines, M span lines in post-order, then the
// transaction line (spec §4.3's ordering rules 2-4; the metadata line is
// prepended separately by the flush worker from its cached preamble).
func SerializeTransaction(t *Transaction) ([]byte, error) {
	var buf bytes.Buffer

	for _, e := range t.Errors {
		if err := marshalLine(&buf, "error", errorToWire(e)); err != nil {
			return nil, err
		}
	}

	if err := appendSpansPostOrder(&buf, t.Children); err != nil {
		return nil, err
	}

	wt := wireTransaction{
		ID:        t.ID,
		TraceID:   t.TraceID,
		ParentID:  t.ParentID,
		Name:      t.Name,
		Type:      t.Type,
		Timestamp: t.Timestamp,
		Duration:  t.Duration,
		Result:    t.Result,
		Outcome:   t.Outcome,
		SpanCount: wireSpanCount{Started: t.SpanCount, Dropped: t.SpanDropped},
	}
	if err := marshalLine(&buf, "transaction", wt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
