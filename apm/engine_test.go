// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bypassedAgent() *Agent {
	return NewAgent(DefaultConfig())
}

func TestBypassIsNoop(t *testing.T) {
	assert := assert.New(t)

	a := bypassedAgent()
	a.Run()
	a.BeginTransaction("GET /", "request", "", "")
	span := a.BeginSpan("query", "db", "sql")
	a.EndSpan(OutcomeSuccess)
	a.CatchError("", "Error", "boom", true)
	a.EndTransaction(OutcomeSuccess, "200")

	assert.Nil(span)
	assert.Nil(a.currentTransaction())
}

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	a := NewAgent(Config{
		Bypass: false,
		URL:    "http://127.0.0.1:0",
		Name:   "test-service",
	})
	return a
}

func TestBeginEndTransaction(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")
	tx := a.currentTransaction()
	assert.NotNil(tx)
	assert.Equal("GET /widgets", tx.Name)
	assert.Len(tx.TraceID, 32)

	a.EndTransaction(OutcomeSuccess, "200")
	assert.Nil(a.currentTransaction())
}

func TestBeginTransactionInheritsTraceparent(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "0af7651916cd43dd8448eb211c80319c", "b7ad6b7169203331")
	tx := a.currentTransaction()
	assert.Equal("0af7651916cd43dd8448eb211c80319c", tx.TraceID)
	assert.Equal("b7ad6b7169203331", tx.ParentID)
	a.EndTransaction(OutcomeSuccess, "200")
}

func TestBeginTransactionSupersedesActive(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("first", "request", "", "")

	a.BeginTransaction("second", "request", "", "")
	tx := a.currentTransaction()
	assert.Equal("second", tx.Name)

	select {
	case superseded := <-a.flush.queue:
		assert.Equal("first", superseded.Name)
		assert.Equal(OutcomeFailure, superseded.Outcome)
		assert.Equal("superseded", superseded.Result)
	default:
		t.Fatal("expected the superseded transaction to be enqueued")
	}
	a.EndTransaction(OutcomeSuccess, "200")
}

func TestSpanNestingIsLIFO(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")

	outer := a.BeginSpan("outer", "db", "sql")
	inner := a.BeginSpan("inner", "db", "sql")
	assert.Equal(outer.ID, inner.ParentID)

	pending := a.currentTransaction().pendingSpan()
	assert.Equal(inner.ID, pending.ID)

	a.EndSpan(OutcomeSuccess)
	pending = a.currentTransaction().pendingSpan()
	assert.Equal(outer.ID, pending.ID)

	a.EndSpan(OutcomeSuccess)
	assert.Nil(a.currentTransaction().pendingSpan())

	a.EndTransaction(OutcomeSuccess, "200")
}

func TestCatchErrorParentsToPendingSpan(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")
	span := a.BeginSpan("query", "db", "sql")

	a.CatchError("", "sql.ErrNoRows", "no rows", true)

	tx := a.currentTransaction()
	assert.Len(tx.Errors, 1)
	assert.Equal(span.ID, tx.Errors[0].ParentID)
	assert.Equal("no rows", tx.Errors[0].Exception.Message)

	a.EndSpan(OutcomeFailure)
	a.EndTransaction(OutcomeFailure, "500")
}

func TestCatchErrorParentsToTransactionWithoutSpan(t *testing.T) {
	assert := assert.New(t)

	a := newTestAgent(t)
	a.BeginTransaction("GET /widgets", "request", "", "")
	a.CatchError("", "panic", "nil pointer", false)

	tx := a.currentTransaction()
	assert.Len(tx.Errors, 1)
	assert.Equal(tx.ID, tx.Errors[0].ParentID)

	a.EndTransaction(OutcomeFailure, "500")
}

func TestActiveAgentDefaultsToBypass(t *testing.T) {
	assert := assert.New(t)

	SetActiveAgent(nil)
	a := ActiveAgent()
	assert.NotNil(a)
	assert.True(a.cfg.Bypass)
}
