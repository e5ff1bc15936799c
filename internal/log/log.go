// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package log provides the leveled logger used throughout the agent.
//
// It mirrors the shape of the teacher's own internal logger: a small set of
// level functions, a process-wide threshold, and a rate-limited Error path
// so that a tight crash/flush-retry loop cannot flood the host service's
// output.
package log

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var (
	mu              sync.Mutex
	levelThreshold  = LevelInfo
	backend         = logrus.New()
	errrate         = time.Second
	lastErrAt       time.Time
	suppressedCount int
)

func init() {
	backend.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel adjusts the process-wide logging threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	levelThreshold = l
}

// SetOutput lets the host service redirect agent log lines.
func SetOutput(w interface {
	Write([]byte) (int, error)
}) {
	backend.SetOutput(w)
}

func enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return l >= levelThreshold
}

// Debug logs a low-level diagnostic line.
func Debug(format string, args ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	backend.Debugf(format, args...)
}

// Info logs a routine lifecycle line (init/destroy, worker start/stop).
func Info(format string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	backend.Infof(format, args...)
}

// Warn logs a recoverable anomaly.
func Warn(format string, args ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	backend.Warnf(format, args...)
}

// Error logs a failure from the error taxonomy in spec §7. Calls are
// rate-limited: bursts collapse to one line plus a suppressed-count note.
func Error(format string, args ...interface{}) {
	if !enabled(LevelError) {
		return
	}
	mu.Lock()
	now := time.Now()
	if !lastErrAt.IsZero() && now.Sub(lastErrAt) < errrate {
		suppressedCount++
		mu.Unlock()
		return
	}
	dropped := suppressedCount
	suppressedCount = 0
	lastErrAt = now
	mu.Unlock()

	if dropped > 0 {
		backend.Errorf(format+" (%d similar messages suppressed)", append(args, dropped)...)
		return
	}
	backend.Errorf(format, args...)
}
