// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

import (
	"time"

	"github.com/hansenhahn/terra-apm-agent-go/internal/metadata"
)

// Constraints gate whether a finished transaction is actually flushed —
// spec §4.1's constraints.flush_if_error / constraints.flush_if_min_duration.
type Constraints struct {
	FlushIfError        bool
	FlushIfMinDuration  time.Duration
}

// Config is the process-wide configuration, spec §4.1. The zero value has
// Bypass=false; callers that want the documented "init without config"
// no-op behavior should use DefaultConfig().
type Config struct {
	Bypass      bool
	URL         string
	Token       string
	Name        string
	Environment string
	Version     string
	Constraints Constraints

	// CloudProviders controls which cloud metadata probes run at init, in
	// priority order (first to answer wins). Empty means skip cloud
	// detection entirely.
	CloudProviders []metadata.CloudProvider

	// StatsdAddr, when non-empty, additionally emits metrics sampler
	// gauges to a statsd listener (SPEC_FULL.md domain stack addition).
	StatsdAddr string

	// MetricsEnabled toggles the metrics sampler worker (spec §4.5's
	// "compile-time opt-in" becomes a runtime flag in Go).
	MetricsEnabled bool
}

// DefaultConfig returns the bypass=true configuration spec §4.1 mandates
// when init is called without an explicit config: every public entry point
// becomes a no-op and no threads are started.
func DefaultConfig() Config {
	return Config{Bypass: true}
}
