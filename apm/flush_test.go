// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hansenhahn/terra-apm-agent-go/internal/transport"
)

func TestShouldFlushOnError(t *testing.T) {
	assert := assert.New(t)

	f := newFlushWorker(Constraints{FlushIfError: true}, transport.NewClient("http://127.0.0.1:0", ""), nil)
	tx := newTransaction("GET /widgets", "request", "", "")
	tx.end(OutcomeFailure, "500")

	assert.True(f.shouldFlush(tx))
}

func TestShouldFlushOnMinDuration(t *testing.T) {
	assert := assert.New(t)

	f := newFlushWorker(Constraints{FlushIfMinDuration: 10 * time.Millisecond}, transport.NewClient("http://127.0.0.1:0", ""), nil)

	fast := newTransaction("GET /fast", "request", "", "")
	fast.end(OutcomeSuccess, "200")
	fast.Duration = 1

	assert.False(f.shouldFlush(fast))

	slow := newTransaction("GET /slow", "request", "", "")
	slow.end(OutcomeSuccess, "200")
	slow.Duration = 50

	assert.True(f.shouldFlush(slow))
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	assert := assert.New(t)

	f := newFlushWorker(Constraints{}, transport.NewClient("http://127.0.0.1:0", ""), nil)
	f.queue = make(chan *Transaction, 1)

	first := newTransaction("a", "request", "", "")
	second := newTransaction("b", "request", "", "")

	f.enqueue(first)
	f.enqueue(second)

	assert.Len(f.queue, 1)
	assert.Equal(first, <-f.queue)
}

func TestShutdownDrainsQueue(t *testing.T) {
	assert := assert.New(t)

	f := newFlushWorker(Constraints{}, transport.NewClient("http://127.0.0.1:0", ""), nil)
	f.start()

	tx := newTransaction("a", "request", "", "")
	tx.end(OutcomeSuccess, "200")
	f.enqueue(tx)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.shutdown(ctx)

	_, open := <-f.queue
	assert.False(open)
}
