// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import "github.com/hansenhahn/terra-apm-agent-go/internal/stackresolver"

// StackFrame is one resolved frame of a captured exception, matching
// apm_error.c's {function, filename} map.
type StackFrame struct {
	Function string
	Filename string
}

// Exception is the embedded detail of an Error, spec §3.
type Exception struct {
	Type       string
	Message    string
	Handled    bool
	Stacktrace []StackFrame
}

// Error is a captured exception attached to exactly one Transaction.
// Grounded on original_source/src/apm_error.c.
type Error struct {
	ID            string
	TransactionID string
	TraceID       string
	ParentID      string
	Culprit       string
	Timestamp     int64
	Exception     Exception
}

func framesToStacktrace(frames []stackresolver.Frame) []StackFrame {
	out := make([]StackFrame, len(frames))
	for i, f := range frames {
		out[i] = StackFrame{Function: f.Function, Filename: f.File}
	}
	return out
}
