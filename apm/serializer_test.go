// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeTransactionOrdering(t *testing.T) {
	assert := assert.New(t)

	tx := newTransaction("GET /widgets", "request", "", "")
	outer := newSpan(tx.ID, tx.TraceID, tx.ID, "outer", "db", "sql")
	inner := newSpan(tx.ID, tx.TraceID, outer.ID, "inner", "db", "sql")
	outer.Children = append(outer.Children, inner)
	tx.Children = append(tx.Children, outer)
	tx.SpanCount = 2

	tx.Errors = append(tx.Errors, &Error{
		ID: "e1", TransactionID: tx.ID, TraceID: tx.TraceID, ParentID: tx.ID,
		Exception: Exception{Type: "Error", Message: "boom"},
	})
	tx.end(OutcomeSuccess, "200")

	body, err := SerializeTransaction(tx)
	assert.NoError(err)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	assert.Len(lines, 4)
	assert.Contains(lines[0], `"error"`)
	assert.Contains(lines[1], `"inner"`)
	assert.Contains(lines[2], `"outer"`)
	assert.Contains(lines[3], `"transaction"`)
}

func TestSerializeTransactionOmitsEmptyContext(t *testing.T) {
	assert := assert.New(t)

	tx := newTransaction("GET /widgets", "request", "", "")
	span := newSpan(tx.ID, tx.TraceID, tx.ID, "noop", "code.custom", "")
	tx.Children = append(tx.Children, span)
	tx.end(OutcomeSuccess, "200")

	body, err := SerializeTransaction(tx)
	assert.NoError(err)
	assert.NotContains(string(body), `"context"`)
}

func TestSerializeTransactionIncludesContextWhenSet(t *testing.T) {
	assert := assert.New(t)

	tx := newTransaction("GET /widgets", "request", "", "")
	span := newSpan(tx.ID, tx.TraceID, tx.ID, "query", "db", "sql")
	span.SetString("SELECT 1", "db", "statement")
	tx.Children = append(tx.Children, span)
	tx.end(OutcomeSuccess, "200")

	body, err := SerializeTransaction(tx)
	assert.NoError(err)
	assert.Contains(string(body), `"statement":"SELECT 1"`)
}
