// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import "github.com/hansenhahn/terra-apm-agent-go/internal/ids"

const (
	// OutcomeSuccess and OutcomeFailure are the only two settled outcomes;
	// an empty string marks a Span as pending (spec §3).
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	// DefaultSpanType is used when begin_span is called without a type,
	// matching apm_span.c's dup_value_or_default(type, "code.custom").
	DefaultSpanType = "code.custom"
)

// Span is a nested child interval under a Transaction, forming a tree with
// other Spans. Grounded on original_source/src/apm_span.c.
type Span struct {
	ID            string
	TransactionID string
	TraceID       string
	ParentID      string
	Name          string
	Type          string
	Subtype       string
	Timestamp     int64
	Duration      float64
	Outcome       string
	Children      []*Span
	Context       *Context
}

func newSpan(transactionID, traceID, parentID, name, spanType, subtype string) *Span {
	if spanType == "" {
		spanType = DefaultSpanType
	}
	return &Span{
		ID:            ids.NewSpanID(),
		TransactionID: transactionID,
		TraceID:       traceID,
		ParentID:      parentID,
		Name:          name,
		Type:          spanType,
		Subtype:       subtype,
		Timestamp:     ids.NowMicros(),
	}
}

// Pending reports whether this span has not yet been ended.
func (s *Span) Pending() bool { return s.Outcome == "" }

// pendingDescendant performs the recursive rightmost-child descent spec
// §4.2 describes: "a recursive descent into the rightmost child path; a
// node is returned iff its outcome is still unset." Grounded on
// apm_get_pending_span in apm_span.c.
func pendingDescendant(s *Span) *Span {
	if s == nil {
		return nil
	}
	if len(s.Children) > 0 {
		if child := pendingDescendant(s.Children[len(s.Children)-1]); child != nil {
			return child
		}
	}
	if s.Pending() {
		return s
	}
	return nil
}

// contextOf lazily allocates the span's context map.
func (s *Span) contextOf() *Context {
	if s.Context == nil {
		s.Context = newContext()
	}
	return s.Context
}

// SetString records a string context value at the given key path.
func (s *Span) SetString(value string, path ...string) {
	s.contextOf().Set(path, StringValue(value))
}

// SetNumber records a numeric context value at the given key path.
func (s *Span) SetNumber(value float64, path ...string) {
	s.contextOf().Set(path, NumberValue(value))
}
