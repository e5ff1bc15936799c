// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelGating(t *testing.T) {
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	assert.False(t, enabled(LevelDebug))
	assert.False(t, enabled(LevelInfo))
	assert.True(t, enabled(LevelWarn))
	assert.True(t, enabled(LevelError))
}

func TestErrorRateLimiting(t *testing.T) {
	SetLevel(LevelError)
	defer SetLevel(LevelInfo)

	mu.Lock()
	lastErrAt = time.Time{}
	suppressedCount = 0
	oldRate := errrate
	errrate = time.Hour
	mu.Unlock()
	defer func() {
		mu.Lock()
		errrate = oldRate
		mu.Unlock()
	}()

	Error("first")
	Error("second")
	Error("third")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, suppressedCount)
}
