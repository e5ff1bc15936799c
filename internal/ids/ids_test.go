// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLength(t *testing.T) {
	assert.Len(t, NewTraceID(), TraceIDLen)
	assert.Len(t, NewTransactionID(), TransactionIDLen)
	assert.Len(t, NewSpanID(), SpanIDLen)
	assert.Len(t, NewErrorID(), ErrorIDLen)
}

func TestTraceparentRoundTrip(t *testing.T) {
	trace := NewTraceID()
	parent := NewTransactionID()

	formatted := FormatTraceparent(trace, parent)
	gotTrace, gotParent, ok := ParseTraceparent(formatted)

	assert.True(t, ok)
	assert.Equal(t, trace, gotTrace)
	assert.Equal(t, parent, gotParent)
}

func TestTraceparentRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-traceparent",
		"01-" + Generate(32) + "-" + Generate(16) + "-01",
		"00-" + Generate(32)[:31] + "-" + Generate(16) + "-01",
		"00-" + Generate(32) + "-" + Generate(16) + "-02",
	}
	for _, c := range cases {
		trace, parent, ok := ParseTraceparent(c)
		assert.False(t, ok, c)
		assert.Empty(t, trace)
		assert.Empty(t, parent)
	}
}

func TestTraceparentCaseInsensitiveHex(t *testing.T) {
	trace, parent, ok := ParseTraceparent("00-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA-BBBBBBBBBBBBBBBB-01")
	assert.True(t, ok)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", trace)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", parent)
}
