// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrashHandleWithNoActiveTransactionIsNoop(t *testing.T) {
	a := newTestAgent(t)
	h := newCrashHandler(a)

	assert.NotPanics(t, func() {
		h.handle("SIGABRT", "test signal")
	})
}

func TestCrashHandleReportsActiveTransaction(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")
	span := a.BeginSpan("query", "db", "sql")

	h := newCrashHandler(a)
	h.handle("SIGABRT", "unexpected abort")

	assert.Nil(a.currentTransaction())
	assert.NotNil(span)
}

func TestRecoverAndReportRePanics(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")

	func() {
		defer func() {
			r := recover()
			assert.Equal("boom", r)
		}()
		defer a.RecoverAndReport()
		panic("boom")
	}()

	assert.Nil(a.currentTransaction())
}
